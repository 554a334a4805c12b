package models

// SafetyVerdict is the text classifier's output for one input blob.
type SafetyVerdict struct {
	Flagged    bool            `json:"flagged"`
	Categories map[string]bool `json:"categories"`
}

// OffensiveCategories are the classifier categories that mark a bundle offensive.
var OffensiveCategories = []string{
	"hate",
	"harassment",
	"harassment/threatening",
	"hate/threatening",
}

// IsOffensive reports whether the verdict is flagged in any offensive category.
func (v SafetyVerdict) IsOffensive() bool {
	if !v.Flagged {
		return false
	}
	for _, c := range OffensiveCategories {
		if v.Categories[c] {
			return true
		}
	}
	return false
}

type EmailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html,omitempty"`
}
