package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UserMetaRepo stores per-user key/value metadata in PostgreSQL. It backs
// both the durable membership records (JSON blobs) and plain user attributes
// consumed by field mappings.
//
// Schema:
//
//	CREATE TABLE user_meta (
//	    user_id    BIGINT NOT NULL,
//	    meta_key   TEXT   NOT NULL,
//	    meta_value TEXT   NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    PRIMARY KEY (user_id, meta_key)
//	);
type UserMetaRepo struct{ db *sql.DB }

// NewUserMetaRepo creates a Postgres-backed user meta repository.
func NewUserMetaRepo(db *sql.DB) *UserMetaRepo { return &UserMetaRepo{db: db} }

// Get returns the raw value for a key, nil when the key is absent.
func (r *UserMetaRepo) Get(ctx context.Context, userID int64, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT meta_value FROM user_meta WHERE user_id = $1 AND meta_key = $2`,
		userID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user meta %q: %w", key, err)
	}
	return value, nil
}

// Set writes a key, replacing any existing value.
func (r *UserMetaRepo) Set(ctx context.Context, userID int64, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_meta (user_id, meta_key, meta_value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, meta_key) DO UPDATE SET meta_value = $3, updated_at = NOW()
	`, userID, key, value)
	if err != nil {
		return fmt.Errorf("set user meta %q: %w", key, err)
	}
	return nil
}

// GetString returns a key's value as a string, empty when absent.
func (r *UserMetaRepo) GetString(ctx context.Context, userID int64, key string) (string, error) {
	value, err := r.Get(ctx, userID, key)
	if err != nil {
		return "", err
	}
	return string(value), nil
}

// Email resolves the user's billing email address.
func (r *UserMetaRepo) Email(ctx context.Context, userID int64) (string, error) {
	return r.GetString(ctx, userID, "billing_email")
}

// Roles returns the user's role names, empty for unknown users.
//
// Schema:
//
//	CREATE TABLE user_roles (
//	    user_id BIGINT NOT NULL,
//	    role    TEXT   NOT NULL,
//	    PRIMARY KEY (user_id, role)
//	);
func (r *UserMetaRepo) Roles(ctx context.Context, userID int64) ([]string, error) {
	if userID == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`, userID)
	if err != nil {
		return nil, fmt.Errorf("get user roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("scan user role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// FindUserByEmail returns the user id registered with the given email, 0
// when no user matches.
//
// Reads the billing_email meta rows written by the storefront.
func (r *UserMetaRepo) FindUserByEmail(ctx context.Context, email string) (int64, error) {
	var userID int64
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM user_meta WHERE meta_key = 'billing_email' AND meta_value = $1 LIMIT 1`,
		email,
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find user by email: %w", err)
	}
	return userID, nil
}
