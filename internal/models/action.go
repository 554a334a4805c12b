package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ActionType string

const (
	ActionTypeBanned      ActionType = "banned"
	ActionTypeSuspended   ActionType = "suspended"
	ActionTypeReactivated ActionType = "reactivated"
	ActionTypeReleased    ActionType = "released"
)

type ActionMetadata struct {
	Commitments             *CommitmentSnapshot `bson:"commitments,omitempty" json:"commitments,omitempty"`
	SuspensionDays          int                 `bson:"suspension_days,omitempty" json:"suspension_days,omitempty"`
	SuspendedAt             *time.Time          `bson:"suspended_at,omitempty" json:"suspended_at,omitempty"`
	SuspensionExpiresAt     *time.Time          `bson:"suspension_expires_at,omitempty" json:"suspension_expires_at,omitempty"`
	AffectedReportIDs       []string            `bson:"affected_report_ids,omitempty" json:"affected_report_ids,omitempty"`
	ComplianceID            string              `bson:"compliance_id,omitempty" json:"compliance_id,omitempty"`
	IsAutomaticReactivation bool                `bson:"is_automatic_reactivation" json:"is_automatic_reactivation"`
}

// ModerationAction is an append-only audit ledger entry. A nil ModeratorID
// means the system acted on its own.
type ModerationAction struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      string             `bson:"user_id" json:"user_id"`
	ActionType  ActionType         `bson:"action_type" json:"action_type"`
	ModeratorID *string            `bson:"moderator_id" json:"moderator_id"`
	Reason      string             `bson:"reason" json:"reason"`
	AnalysisID  *string            `bson:"analysis_id" json:"analysis_id"`
	Metadata    ActionMetadata     `bson:"metadata" json:"metadata"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}
