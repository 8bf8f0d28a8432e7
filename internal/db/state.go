package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// StateBackend stores state documents in the user_state table. It satisfies state.Backend.
type StateBackend struct {
	db *DB
}

// StateBackend returns the Postgres state backend.
func (db *DB) StateBackend() *StateBackend {
	return &StateBackend{db: db}
}

// Load returns the owner's raw document, or nil when none is stored.
func (b *StateBackend) Load(ctx context.Context, owner string) ([]byte, error) {
	var doc []byte
	err := b.db.pool.QueryRow(ctx,
		`SELECT document FROM user_state WHERE owner = $1`, owner,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	if string(doc) == "null" {
		return nil, nil
	}
	return doc, nil
}

// Update locks the owner's row, passes the document to fn and writes the result
// in the same transaction.
func (b *StateBackend) Update(ctx context.Context, owner string, fn func([]byte) ([]byte, error)) error {
	tx, err := b.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Make sure a row exists so the lock below always has something to hold.
	if _, err := tx.Exec(ctx,
		`INSERT INTO user_state (owner, document) VALUES ($1, 'null'::jsonb)
		 ON CONFLICT (owner) DO NOTHING`, owner); err != nil {
		return fmt.Errorf("failed to create state row: %w", err)
	}

	var current []byte
	if err := tx.QueryRow(ctx,
		`SELECT document FROM user_state WHERE owner = $1 FOR UPDATE`, owner,
	).Scan(&current); err != nil {
		return fmt.Errorf("failed to lock state: %w", err)
	}
	if string(current) == "null" {
		current = nil
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE user_state SET document = $2::jsonb, updated_at = NOW() WHERE owner = $1`,
		owner, string(next)); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return tx.Commit(ctx)
}

// Delete removes the owner's document.
func (b *StateBackend) Delete(ctx context.Context, owner string) error {
	if _, err := b.db.pool.Exec(ctx, `DELETE FROM user_state WHERE owner = $1`, owner); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	return nil
}
