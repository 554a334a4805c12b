package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportSetKeyIgnoresOrderAndDuplicates(t *testing.T) {
	a := ReportSetKey([]string{"svc:2", "prj:1", "svc:2"})
	b := ReportSetKey([]string{"prj:1", "svc:2"})
	assert.Equal(t, a, b)
	assert.Equal(t, "prj:1,svc:2", a)
	assert.NotEqual(t, a, ReportSetKey([]string{"prj:1"}))
}

func TestSplitExternalReportID(t *testing.T) {
	d, id, err := SplitExternalReportID("pub:abc:1")
	require.NoError(t, err)
	assert.Equal(t, DomainPublication, d)
	assert.Equal(t, "abc:1", id)

	for _, bad := range []string{"", "svc", "svc:", "xyz:1"} {
		_, _, err := SplitExternalReportID(bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
}

func TestReportTextAndExternalID(t *testing.T) {
	r := Report{ID: "9", Domain: DomainProject, Reason: ReasonOther, OtherReason: "scam", Description: "took payment"}
	assert.Equal(t, "prj:9", r.ExternalID())
	assert.Equal(t, "other: scam: took payment", r.Text())
	assert.Equal(t, ReasonOther, NormalizeReason("made up"))
	assert.Equal(t, ReasonSpam, NormalizeReason(" SPAM "))
}

func TestCheckInvariants(t *testing.T) {
	now := time.Now()
	reason, by, days := "spam", "mod-1", 7

	active := AccountState{UserID: "1", Status: AccountActive}
	assert.NoError(t, active.CheckInvariants())

	suspended := AccountState{
		UserID: "2", Status: AccountSuspended,
		SuspendedAt: &now, SuspensionExpiresAt: &now, SuspensionReason: &reason, SuspensionDays: &days, SuspendedBy: &by,
	}
	assert.NoError(t, suspended.CheckInvariants())

	partial := suspended
	partial.SuspendedBy = nil
	assert.Error(t, partial.CheckInvariants())

	both := suspended
	both.BannedAt, both.BannedBy, both.BanReason = &now, &by, &reason
	assert.Error(t, both.CheckInvariants())

	banned := AccountState{UserID: "3", Status: AccountBanned, BannedAt: &now, BannedBy: &by, BanReason: &reason}
	assert.NoError(t, banned.CheckInvariants())

	assert.Error(t, AccountState{UserID: "4", Status: "frozen"}.CheckInvariants())
}

func TestNewCommitmentSnapshot(t *testing.T) {
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s := NewCommitmentSnapshot([]Commitment{
		{Kind: CommitmentHiredService, ID: "s1"},
		{Kind: CommitmentOwnedProject, ID: "p1"},
		{Kind: CommitmentCollaboration, ID: "c1"},
		{Kind: CommitmentHiredService, ID: "s2"},
	}, at)
	assert.Len(t, s.HiredServices, 2)
	assert.Len(t, s.OwnedProjects, 1)
	assert.Len(t, s.Collaborations, 1)
	assert.Equal(t, 4, s.Total())
	assert.Equal(t, at, s.CapturedAt)

	empty := NewCommitmentSnapshot(nil, at)
	assert.NotNil(t, empty.HiredServices)
	assert.Empty(t, empty.All())
}

func TestAnalysisFilterNormalize(t *testing.T) {
	f := AnalysisFilter{Page: -3, PageSize: 1000}
	f.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 100, f.PageSize)

	f = AnalysisFilter{}
	f.Normalize()
	assert.Equal(t, 20, f.PageSize)
}

func TestResolutionRules(t *testing.T) {
	assert.True(t, ActionKeepMonitoring.Valid())
	assert.False(t, ResolutionAction("delete_user").Valid())
	for _, d := range []int{7, 15, 30} {
		assert.True(t, ValidSuspensionDays(d))
	}
	assert.False(t, ValidSuspensionDays(14))
}

func TestSafetyVerdictIsOffensive(t *testing.T) {
	assert.True(t, SafetyVerdict{Flagged: true, Categories: map[string]bool{"harassment": true}}.IsOffensive())
	assert.False(t, SafetyVerdict{Flagged: true, Categories: map[string]bool{"violence": true}}.IsOffensive())
	assert.False(t, SafetyVerdict{Flagged: false, Categories: map[string]bool{"hate": true}}.IsOffensive())
}
