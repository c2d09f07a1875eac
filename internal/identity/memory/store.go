// Package memory is an in-memory identity store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dalnet/lobbybot/internal/clock"
	"github.com/dalnet/lobbybot/internal/identity"
)

// Store keeps records in a map guarded by a single mutex
type Store struct {
	mu      sync.Mutex
	records map[string]identity.Record
	clock   clock.Clock
}

// New creates an empty in-memory store
func New(clk clock.Clock) *Store {
	return &Store{
		records: make(map[string]identity.Record),
		clock:   clk,
	}
}

// Ensure Store implements the interface
var _ identity.Store = (*Store)(nil)

func (s *Store) Register(ctx context.Context, nickname, steamID string) (*identity.Record, error) {
	key, err := identity.Fold(nickname)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[key]; ok {
		return nil, identity.ErrAlreadyRegistered
	}
	rec := identity.Record{
		Nickname:  key,
		SteamID:   steamID,
		CreatedAt: s.clock.Now().UTC(),
	}
	s.records[key] = rec
	return &rec, nil
}

func (s *Store) Lookup(ctx context.Context, nickname string) (*identity.Record, error) {
	key, err := identity.Fold(nickname)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return &rec, nil
}

func (s *Store) Delete(ctx context.Context, nickname string) error {
	key, err := identity.Fold(nickname)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[key]; !ok {
		return identity.ErrNotFound
	}
	delete(s.records, key)
	return nil
}

func (s *Store) RecordUsage(ctx context.Context, nickname string) error {
	key, err := identity.Fold(nickname)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return identity.ErrNotFound
	}
	rec.Used++
	s.records[key] = rec
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
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}
