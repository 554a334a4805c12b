package database

import (
	"database/sql"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// ConnectPostgres connects to PostgreSQL and makes sure the moderation
// columns and tables exist.
func ConnectPostgres(postgresURI string) (*sql.DB, error) {
	db, err := sql.Open("postgres", postgresURI)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("Connected to PostgreSQL")

	if err := InitPostgresTables(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// InitPostgresTables adds the account-status columns to the externally owned
// users table and creates the moderators table.
func InitPostgresTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			username VARCHAR(20) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,

		`ALTER TABLE users ADD COLUMN IF NOT EXISTS email VARCHAR(255)`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS account_status VARCHAR(20) NOT NULL DEFAULT 'active'`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS suspended_at TIMESTAMPTZ`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS suspension_expires_at TIMESTAMPTZ`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS suspension_reason TEXT`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS suspension_days INTEGER`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS suspended_by VARCHAR(255)`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS banned_at TIMESTAMPTZ`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS banned_by VARCHAR(255)`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS ban_reason TEXT`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS token_invalidated_at TIMESTAMPTZ`,

		// Moderators sign in to resolve analyses
		`CREATE TABLE IF NOT EXISTS moderators (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			username VARCHAR(50) NOT NULL UNIQUE,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_users_account_status ON users(account_status)`,
		`CREATE INDEX IF NOT EXISTS idx_users_suspension_expires_at ON users(suspension_expires_at) WHERE account_status = 'suspended'`,
		`CREATE INDEX IF NOT EXISTS idx_moderators_username ON moderators(username)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	slog.Info("PostgreSQL moderation tables initialized")
	return nil
}
