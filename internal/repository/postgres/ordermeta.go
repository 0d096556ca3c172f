package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// OrderMetaRepo stores per-order key/value metadata: the idempotency and
// deferred-action flags plus campaign tracking ids. Flags are append-only;
// nothing here deletes a key.
//
// Schema:
//
//	CREATE TABLE order_meta (
//	    order_id   BIGINT NOT NULL,
//	    meta_key   TEXT   NOT NULL,
//	    meta_value TEXT   NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    PRIMARY KEY (order_id, meta_key)
//	);
type OrderMetaRepo struct{ db *sql.DB }

// NewOrderMetaRepo creates a Postgres-backed order meta repository.
func NewOrderMetaRepo(db *sql.DB) *OrderMetaRepo { return &OrderMetaRepo{db: db} }

// Get returns the value for a key, empty when absent.
func (r *OrderMetaRepo) Get(ctx context.Context, orderID int64, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT meta_value FROM order_meta WHERE order_id = $1 AND meta_key = $2`,
		orderID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get order meta %q: %w", key, err)
	}
	return value, nil
}

// Set writes a key, replacing any existing value.
func (r *OrderMetaRepo) Set(ctx context.Context, orderID int64, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_meta (order_id, meta_key, meta_value)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id, meta_key) DO UPDATE SET meta_value = $3
	`, orderID, key, value)
	if err != nil {
		return fmt.Errorf("set order meta %q: %w", key, err)
	}
	return nil
}

// SetOnce writes a key only when it does not exist yet.
func (r *OrderMetaRepo) SetOnce(ctx context.Context, orderID int64, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_meta (order_id, meta_key, meta_value)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id, meta_key) DO NOTHING
	`, orderID, key, value)
	if err != nil {
		return fmt.Errorf("set order meta %q: %w", key, err)
	}
	return nil
}
