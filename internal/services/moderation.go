package services

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/AnshRaj112/salvioris-moderation/internal/models"
)

var spaceRegex = regexp.MustCompile(`\s+`)

// obfuscation maps look-alike characters to the letter they stand for.
var obfuscation = strings.NewReplacer(
	"@", "a",
	"4", "a",
	"3", "e",
	"!", "i",
	"1", "i",
	"0", "o",
	"$", "s",
	"5", "s",
	"7", "t",
	"+", "t",
	"а", "a", // Cyrillic
	"е", "e",
	"і", "i",
	"о", "o",
	"р", "p",
)

// CleanText normalizes text to canonical form: lowercase, de-obfuscated,
// letters only, repeats collapsed, single-spaced.
func CleanText(text string) string {
	cleaned := obfuscation.Replace(strings.ToLower(text))

	var builder strings.Builder
	for _, r := range cleaned {
		if unicode.IsLetter(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}

	cleaned = collapseRepeats(builder.String())
	cleaned = spaceRegex.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// collapseRepeats reduces repeated letters to one ("fraaaud" -> "fraud").
// Spaces are never collapsed.
func collapseRepeats(text string) string {
	if len(text) == 0 {
		return text
	}

	var result strings.Builder
	lastChar := rune(0)
	lastWasLetter := false

	for _, char := range text {
		isLetter := unicode.IsLetter(char)
		if isLetter && lastWasLetter && char == lastChar {
			continue
		}
		result.WriteRune(char)
		lastChar = char
		lastWasLetter = isLetter
	}

	return result.String()
}

// ContainsConfirmedWord reports which base words occur in cleaned text.
// Single words must match a whole word ("skill" does not match "kill");
// phrases match as substrings.
func ContainsConfirmedWord(cleanedText string, baseWords []string) (bool, []string) {
	var confirmed []string
	words := strings.Fields(cleanedText)

	for _, baseWord := range baseWords {
		if baseWord == "" || !strings.Contains(cleanedText, baseWord) {
			continue
		}
		if len(strings.Fields(baseWord)) > 1 {
			confirmed = append(confirmed, baseWord)
			continue
		}
		for _, w := range words {
			if w == baseWord {
				confirmed = append(confirmed, baseWord)
				break
			}
		}
	}

	return len(confirmed) > 0, confirmed
}

// ViolationMatcher decides whether a report's stated reason falls in the
// configured policy-violation keyword set.
type ViolationMatcher struct {
	keywords []string
}

func NewViolationMatcher(keywords []string) *ViolationMatcher {
	cleaned := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if c := CleanText(k); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	return &ViolationMatcher{keywords: cleaned}
}

// Matches checks the reason and the free-text "other" reason.
func (m *ViolationMatcher) Matches(r models.Report) bool {
	text := CleanText(string(r.Reason) + " " + r.OtherReason)
	ok, _ := ContainsConfirmedWord(text, m.keywords)
	return ok
}

// Count returns how many reports in the bundle match.
func (m *ViolationMatcher) Count(reports []models.Report) int {
	n := 0
	for _, r := range reports {
		if m.Matches(r) {
			n++
		}
	}
	return n
}
