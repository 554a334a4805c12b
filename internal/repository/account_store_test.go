package repository

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/AnshRaj112/salvioris-moderation/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *uuid.UUID:
			*p = r.values[i].(uuid.UUID)
		case *string:
			*p = r.values[i].(string)
		case *sql.NullTime:
			*p = r.values[i].(sql.NullTime)
		case *sql.NullString:
			*p = r.values[i].(sql.NullString)
		case *sql.NullInt64:
			*p = r.values[i].(sql.NullInt64)
		default:
			return errors.New("unexpected destination type")
		}
	}
	return nil
}

func TestScanAccountSuspended(t *testing.T) {
	id := uuid.New()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	exp := at.AddDate(0, 0, 7)

	a, err := scanAccount(fakeRow{values: []any{
		id, "maya", "maya@example.com", "suspended",
		sql.NullTime{Time: at, Valid: true},
		sql.NullTime{Time: exp, Valid: true},
		sql.NullString{String: "spam", Valid: true},
		sql.NullInt64{Int64: 7, Valid: true},
		sql.NullString{String: "mod-1", Valid: true},
		sql.NullTime{}, sql.NullString{}, sql.NullString{}, sql.NullTime{},
	}})
	require.NoError(t, err)

	assert.Equal(t, id.String(), a.UserID)
	assert.Equal(t, models.AccountSuspended, a.Status)
	require.NotNil(t, a.SuspensionDays)
	assert.Equal(t, 7, *a.SuspensionDays)
	assert.Equal(t, exp, *a.SuspensionExpiresAt)
	assert.Nil(t, a.BannedAt)
	assert.NoError(t, a.CheckInvariants())
}

func TestScanAccountPropagatesError(t *testing.T) {
	_, err := scanAccount(fakeRow{err: sql.ErrNoRows})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestParseUserIDRejectsGarbage(t *testing.T) {
	_, err := parseUserID("42")
	assert.ErrorIs(t, err, models.ErrValidation)

	id := uuid.New()
	got, err := parseUserID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)
}
