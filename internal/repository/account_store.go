package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AnshRaj112/salvioris-moderation/internal/models"
	"github.com/google/uuid"
)

const accountColumns = `
	id, username, COALESCE(email, ''), account_status,
	suspended_at, suspension_expires_at, suspension_reason, suspension_days, suspended_by,
	banned_at, banned_by, ban_reason, token_invalidated_at`

// AccountStore reads and mutates the moderation fields of the users table.
// Every status transition runs in a transaction holding the row lock.
type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.AccountState, error) {
	var (
		a                                      models.AccountState
		id                                     uuid.UUID
		status                                 string
		suspendedAt, expiresAt, bannedAt, tokA sql.NullTime
		susReason, susBy, banBy, banReason     sql.NullString
		susDays                                sql.NullInt64
	)
	err := row.Scan(
		&id, &a.Username, &a.Email, &status,
		&suspendedAt, &expiresAt, &susReason, &susDays, &susBy,
		&bannedAt, &banBy, &banReason, &tokA,
	)
	if err != nil {
		return nil, err
	}
	a.UserID = id.String()
	a.Status = models.AccountStatus(status)
	a.SuspendedAt = nullTime(suspendedAt)
	a.SuspensionExpiresAt = nullTime(expiresAt)
	a.SuspensionReason = nullString(susReason)
	a.SuspendedBy = nullString(susBy)
	if susDays.Valid {
		d := int(susDays.Int64)
		a.SuspensionDays = &d
	}
	a.BannedAt = nullTime(bannedAt)
	a.BannedBy = nullString(banBy)
	a.BanReason = nullString(banReason)
	a.TokenInvalidatedAt = nullTime(tokA)
	return &a, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func parseUserID(userID string) (uuid.UUID, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: user id %q", models.ErrValidation, userID)
	}
	return id, nil
}

func (s *AccountStore) Get(ctx context.Context, userID string) (*models.AccountState, error) {
	id, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}
	a, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, userID)
	}
	return a, err
}

// withLockedAccount runs fn inside a transaction with the user's row locked.
func (s *AccountStore) withLockedAccount(ctx context.Context, userID string, fn func(tx *sql.Tx, current *models.AccountState) error) error {
	id, err := parseUserID(userID)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	current, err := scanAccount(tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: user %s", models.ErrNotFound, userID)
	}
	if err != nil {
		return err
	}

	if err := fn(tx, current); err != nil {
		return err
	}
	return tx.Commit()
}

// Ban moves the account to banned. A suspended account may be banned; its
// suspension fields are cleared in the same statement.
func (s *AccountStore) Ban(ctx context.Context, p models.BanParams) (*models.AccountState, error) {
	var updated *models.AccountState
	err := s.withLockedAccount(ctx, p.UserID, func(tx *sql.Tx, current *models.AccountState) error {
		if current.Status == models.AccountBanned {
			return fmt.Errorf("%w: %s", models.ErrAlreadyBanned, p.UserID)
		}
		row := tx.QueryRowContext(ctx, `
			UPDATE users SET
				account_status = 'banned',
				banned_at = $2, banned_by = $3, ban_reason = $4,
				suspended_at = NULL, suspension_expires_at = NULL, suspension_reason = NULL,
				suspension_days = NULL, suspended_by = NULL
			WHERE id = $1
			RETURNING `+accountColumns,
			current.UserID, p.At, p.ModeratorID, p.Reason)
		var err error
		updated, err = scanAccount(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Suspend moves an active account to suspended. Banned accounts are never
// downgraded.
func (s *AccountStore) Suspend(ctx context.Context, p models.SuspendParams) (*models.AccountState, error) {
	var updated *models.AccountState
	err := s.withLockedAccount(ctx, p.UserID, func(tx *sql.Tx, current *models.AccountState) error {
		switch current.Status {
		case models.AccountBanned:
			return fmt.Errorf("%w: %s", models.ErrUserBanned, p.UserID)
		case models.AccountSuspended:
			return fmt.Errorf("%w: %s", models.ErrAlreadySuspended, p.UserID)
		}
		row := tx.QueryRowContext(ctx, `
			UPDATE users SET
				account_status = 'suspended',
				suspended_at = $2, suspension_expires_at = $3, suspension_reason = $4,
				suspension_days = $5, suspended_by = $6
			WHERE id = $1
			RETURNING `+accountColumns,
			current.UserID, p.At, p.ExpiresAt, p.Reason, p.Days, p.ModeratorID)
		var err error
		updated, err = scanAccount(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListExpiredSuspensions returns suspended accounts whose suspension ends at
// or before cutoff.
func (s *AccountStore) ListExpiredSuspensions(ctx context.Context, cutoff time.Time) ([]models.AccountState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM users
		WHERE account_status = 'suspended' AND suspension_expires_at <= $1
		ORDER BY suspension_expires_at ASC
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.AccountState
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// Reactivate clears an expired suspension and stamps the token invalidation
// marker. It returns the account as it was before the change. The expiry is
// re-checked under the row lock so a ban or extension in between wins.
func (s *AccountStore) Reactivate(ctx context.Context, userID string, at, cutoff time.Time) (*models.AccountState, error) {
	var previous *models.AccountState
	err := s.withLockedAccount(ctx, userID, func(tx *sql.Tx, current *models.AccountState) error {
		if current.Status != models.AccountSuspended {
			return fmt.Errorf("%w: user %s is %s", models.ErrConflict, userID, current.Status)
		}
		if current.SuspensionExpiresAt == nil || current.SuspensionExpiresAt.After(cutoff) {
			return fmt.Errorf("%w: suspension of %s has not expired", models.ErrConflict, userID)
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE users SET
				account_status = 'active',
				suspended_at = NULL, suspension_expires_at = NULL, suspension_reason = NULL,
				suspension_days = NULL, suspended_by = NULL,
				token_invalidated_at = $2
			WHERE id = $1
		`, current.UserID, at)
		previous = current
		return err
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}
