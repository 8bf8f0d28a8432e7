package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/resume-optimizer/internal/types"
)

const userColumns = `id, subject, email, name, picture, created_at, last_login`

func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	if err := row.Scan(&u.ID, &u.Subject, &u.Email, &u.Name, &u.Picture, &u.CreatedAt, &u.LastLogin); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertUserBySubject creates the user on first sign-in and refreshes the
// profile and last_login on every later one.
func (db *DB) UpsertUserBySubject(ctx context.Context, id types.Identity) (*types.User, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	u, err := scanUser(db.pool.QueryRow(ctx,
		`INSERT INTO users (subject, email, name, picture)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (subject) DO UPDATE
		   SET email = EXCLUDED.email, name = EXCLUDED.name, picture = EXCLUDED.picture, last_login = NOW()
		 RETURNING `+userColumns,
		id.Subject, id.Email, id.Name, id.Picture,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return u, nil
}

// GetUser retrieves a user by ID. Returns nil, nil when not found.
func (db *DB) GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUserBySubject retrieves a user by identity-provider subject. Returns nil, nil when not found.
func (db *DB) GetUserBySubject(ctx context.Context, subject string) (*types.User, error) {
	if subject == "" {
		return nil, nil
	}
	u, err := scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE subject = $1`, subject))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by subject: %w", err)
	}
	return u, nil
}

// DeleteUser removes a user and their state document.
func (db *DB) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM user_state WHERE owner = $1`, userID.String()); err != nil {
		return fmt.Errorf("failed to delete user state: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return tx.Commit(ctx)
}
