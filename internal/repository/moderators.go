package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/AnshRaj112/salvioris-moderation/internal/models"
	"github.com/google/uuid"
)

type Moderator struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
}

type ModeratorStore struct {
	db *sql.DB
}

func NewModeratorStore(db *sql.DB) *ModeratorStore {
	return &ModeratorStore{db: db}
}

// FindByUsername looks up an active moderator, case-insensitively.
func (s *ModeratorStore) FindByUsername(ctx context.Context, username string) (*Moderator, error) {
	var m Moderator
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, is_active
		FROM moderators
		WHERE LOWER(username) = $1 AND is_active = TRUE
	`, strings.ToLower(strings.TrimSpace(username))).Scan(&m.ID, &m.Username, &m.Email, &m.PasswordHash, &m.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: moderator %s", models.ErrNotFound, username)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
