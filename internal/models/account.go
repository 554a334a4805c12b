package models

import (
	"fmt"
	"time"
)

type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
	AccountBanned    AccountStatus = "banned"
)

// AccountState is the moderation-relevant slice of the user aggregate.
type AccountState struct {
	UserID   string        `json:"user_id"`
	Username string        `json:"username"`
	Email    string        `json:"-"`
	Status   AccountStatus `json:"account_status"`

	SuspendedAt         *time.Time `json:"suspended_at,omitempty"`
	SuspensionExpiresAt *time.Time `json:"suspension_expires_at,omitempty"`
	SuspensionReason    *string    `json:"suspension_reason,omitempty"`
	SuspensionDays      *int       `json:"suspension_days,omitempty"`
	SuspendedBy         *string    `json:"suspended_by,omitempty"`

	BannedAt  *time.Time `json:"banned_at,omitempty"`
	BannedBy  *string    `json:"banned_by,omitempty"`
	BanReason *string    `json:"ban_reason,omitempty"`

	TokenInvalidatedAt *time.Time `json:"token_invalidated_at,omitempty"`
}

func (a AccountState) suspensionFieldsSet() (all, none bool) {
	set := []bool{
		a.SuspendedAt != nil,
		a.SuspensionExpiresAt != nil,
		a.SuspensionReason != nil,
		a.SuspensionDays != nil,
		a.SuspendedBy != nil,
	}
	all, none = true, true
	for _, s := range set {
		all = all && s
		none = none && !s
	}
	return all, none
}

func (a AccountState) banFieldsSet() (all, none bool) {
	set := []bool{a.BannedAt != nil, a.BannedBy != nil, a.BanReason != nil}
	all, none = true, true
	for _, s := range set {
		all = all && s
		none = none && !s
	}
	return all, none
}

// CheckInvariants verifies suspension fields are all set iff suspended and
// ban fields are all set iff banned.
func (a AccountState) CheckInvariants() error {
	susAll, susNone := a.suspensionFieldsSet()
	banAll, banNone := a.banFieldsSet()
	switch a.Status {
	case AccountActive:
		if !susNone || !banNone {
			return fmt.Errorf("active account %s carries sanction fields", a.UserID)
		}
	case AccountSuspended:
		if !susAll || !banNone {
			return fmt.Errorf("suspended account %s has inconsistent fields", a.UserID)
		}
	case AccountBanned:
		if !banAll || !susNone {
			return fmt.Errorf("banned account %s has inconsistent fields", a.UserID)
		}
	default:
		return fmt.Errorf("account %s has unknown status %q", a.UserID, a.Status)
	}
	return nil
}

type BanParams struct {
	UserID      string
	ModeratorID string
	Reason      string
	At          time.Time
}

type SuspendParams struct {
	UserID      string
	ModeratorID string
	Reason      string
	Days        int
	At          time.Time
	ExpiresAt   time.Time
}
