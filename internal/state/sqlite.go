package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Register the pure-Go SQLite driver.
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS state_documents (
	owner      TEXT PRIMARY KEY,
	document   TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// SQLiteBackend stores documents in a local SQLite file. The CLI uses it.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a state file. Use ":memory:" for tests.
func OpenSQLite(ctx context.Context, path string) (*SQLiteBackend, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open state file: %w", err)
	}
	// One connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create state table: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// Load implements Backend.
func (b *SQLiteBackend) Load(ctx context.Context, owner string) ([]byte, error) {
	var doc string
	err := b.db.QueryRowContext(ctx, `SELECT document FROM state_documents WHERE owner = ?`, owner).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	return []byte(doc), nil
}

// Update implements Backend.
func (b *SQLiteBackend) Update(ctx context.Context, owner string, fn func([]byte) ([]byte, error)) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin state transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var current []byte
	var doc string
	err = tx.QueryRowContext(ctx, `SELECT document FROM state_documents WHERE owner = ?`, owner).Scan(&doc)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to read state: %w", err)
	default:
		current = []byte(doc)
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO state_documents (owner, document, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(owner) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		owner, string(next), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state: %w", err)
	}
	return nil
}

// Delete implements Backend.
func (b *SQLiteBackend) Delete(ctx context.Context, owner string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM state_documents WHERE owner = ?`, owner); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	return nil
}
