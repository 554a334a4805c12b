package services

import (
	"testing"
	"time"

	"github.com/AnshRaj112/salvioris-moderation/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuspensionNoticeListsDateAndCommitments(t *testing.T) {
	expires := time.Date(2026, 11, 3, 9, 0, 0, 0, time.UTC)
	snapshot := models.NewCommitmentSnapshot([]models.Commitment{
		{Domain: models.DomainService, Kind: models.CommitmentHiredService, ID: "s1", Title: "Logo design"},
	}, expires)

	msg, err := SuspensionNotice(models.AccountState{Username: "maya", Email: "maya@example.com"}, "spam", 15, expires, time.UTC, snapshot)
	require.NoError(t, err)

	assert.Equal(t, "maya@example.com", msg.To)
	assert.Contains(t, msg.Text, "suspended for 15 days")
	assert.Contains(t, msg.Text, "November 3, 2026")
	assert.Contains(t, msg.Text, "Logo design")
}

func TestSuspensionNoticeShowsLocalReactivationDay(t *testing.T) {
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	require.NoError(t, err)
	expires := time.Date(2026, 10, 25, 1, 0, 0, 0, time.UTC)

	msg, err := SuspensionNotice(models.AccountState{Email: "x@example.com"}, "spam", 7, expires, loc, models.NewCommitmentSnapshot(nil, expires))
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "October 24, 2026")
	assert.NotContains(t, msg.Text, "October 25")
}

func TestBanNoticeWithoutCommitments(t *testing.T) {
	msg, err := BanNotice(models.AccountState{Email: "x@example.com"}, "fraud", models.NewCommitmentSnapshot(nil, time.Now()))
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "Hello there")
	assert.NotContains(t, msg.Text, "active engagements")
}
