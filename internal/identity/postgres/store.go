// Package postgres is the PostgreSQL identity store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dalnet/lobbybot/internal/clock"
	"github.com/dalnet/lobbybot/internal/identity"
)

// Store persists identity records in the users table.
// Each mutation is a single statement, which makes it atomic.
type Store struct {
	pool  *pgxpool.Pool
	clock clock.Clock
}

// New creates a Store on an existing pool. The pool is owned by the store.
func New(pool *pgxpool.Pool, clk clock.Clock) *Store {
	return &Store{pool: pool, clock: clk}
}

// Ensure Store implements the interface
var _ identity.Store = (*Store)(nil)

// Register inserts a new record. A conflicting insert returns no row.
func (s *Store) Register(ctx context.Context, nickname, steamID string) (*identity.Record, error) {
	key, err := identity.Fold(nickname)
	if err != nil {
		return nil, err
	}

	const query = `
		INSERT INTO users (nickname, steam_id, used, created_at)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (nickname) DO NOTHING
		RETURNING nickname, steam_id, used, created_at
	`

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, key, steamID, s.clock.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("failed to register nickname: %w", err)
	}
	return rec, nil
}

func (s *Store) Lookup(ctx context.Context, nickname string) (*identity.Record, error) {
	key, err := identity.Fold(nickname)
	if err != nil {
		return nil, err
	}

	const query = `
		SELECT nickname, steam_id, used, created_at
		FROM users
		WHERE nickname = $1
	`

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up nickname: %w", err)
	}
	return rec, nil
}

func (s *Store) Delete(ctx context.Context, nickname string) error {
	key, err := identity.Fold(nickname)
	if err != nil {
		return err
	}

	result, err := s.pool.Exec(ctx, `DELETE FROM users WHERE nickname = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete nickname: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrNotFound
	}
	return nil
}

// RecordUsage increments the counter. An UPDATE never inserts, so a record
// deleted in the meantime stays deleted.
func (s *Store) RecordUsage(ctx context.Context, nickname string) error {
	key, err := identity.Fold(nickname)
	if err != nil {
		return err
	}

	result, err := s.pool.Exec(ctx, `UPDATE users SET used = used + 1 WHERE nickname = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (s *Store) Stats(ctx context.Context, nickname string) (int64, time.Time, error) {
	rec, err := s.Lookup(ctx, nickname)
	if err != nil {
		return 0, time.Time{}, err
	}
	return rec.Used, rec.CreatedAt, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// Close closes the connection pool
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (*identity.Record, error) {
	var rec identity.Record
	if err := row.Scan(&rec.Nickname, &rec.SteamID, &rec.Used, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}
