package models

import (
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Classification string

const (
	ClassificationReview Classification = "Review"
	ClassificationBan    Classification = "Ban"
)

type ResolutionAction string

const (
	ActionBanUser        ResolutionAction = "ban_user"
	ActionSuspendUser    ResolutionAction = "suspend_user"
	ActionReleaseUser    ResolutionAction = "release_user"
	ActionKeepMonitoring ResolutionAction = "keep_monitoring"
)

func (a ResolutionAction) Valid() bool {
	switch a {
	case ActionBanUser, ActionSuspendUser, ActionReleaseUser, ActionKeepMonitoring:
		return true
	}
	return false
}

// AllowedSuspensionDays are the only suspension lengths a moderator may pick.
var AllowedSuspensionDays = []int{7, 15, 30}

func ValidSuspensionDays(days int) bool {
	for _, d := range AllowedSuspensionDays {
		if d == days {
			return true
		}
	}
	return false
}

type ModerationAnalysis struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID            string             `bson:"user_id" json:"user_id"`
	AnalyzedReportIDs []string           `bson:"analyzed_report_ids" json:"analyzed_report_ids"`
	ReportSetKey      string             `bson:"report_set_key" json:"-"`
	TotalReports      int                `bson:"total_reports" json:"total_reports"`
	OffensiveReports  int                `bson:"offensive_reports" json:"offensive_reports"`
	ViolationReports  int                `bson:"violation_reports" json:"violation_reports"`
	Classification    Classification     `bson:"classification" json:"classification"`
	AISummary         string             `bson:"ai_summary" json:"ai_summary"`

	Resolved         bool              `bson:"resolved" json:"resolved"`
	ResolvedBy       *string           `bson:"resolved_by,omitempty" json:"resolved_by,omitempty"`
	ResolvedAt       *time.Time        `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
	ResolutionAction *ResolutionAction `bson:"resolution_action,omitempty" json:"resolution_action,omitempty"`
	ResolutionNotes  *string           `bson:"resolution_notes,omitempty" json:"resolution_notes,omitempty"`
	// SanctionApplied is false when the chosen action was rejected (for
	// example suspending a banned user); SanctionError says why.
	SanctionApplied *bool   `bson:"sanction_applied,omitempty" json:"sanction_applied,omitempty"`
	SanctionError   *string `bson:"sanction_error,omitempty" json:"sanction_error,omitempty"`

	Notified   bool       `bson:"notified" json:"notified"`
	NotifiedAt *time.Time `bson:"notified_at,omitempty" json:"notified_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Resolution is the single mutation an analysis ever receives.
type Resolution struct {
	Action      ResolutionAction
	ModeratorID string
	Notes       string
	ResolvedAt  time.Time

	SanctionApplied bool
	SanctionError   string
}

// ReportSetKey canonicalises a report id set so identical sets compare equal
// regardless of order or duplicates.
func ReportSetKey(ids []string) string {
	seen := make(map[string]struct{}, len(ids))
	uniq := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	sort.Strings(uniq)
	return strings.Join(uniq, ",")
}

type AnalysisFilter struct {
	Resolved       *bool
	Classification *Classification
	Page           int
	PageSize       int
}

// Normalize clamps pagination to sane bounds.
func (f *AnalysisFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
}
