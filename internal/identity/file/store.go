// Package file is an identity store kept in a single JSON document.
//
// Every operation re-reads the document under a file lock, so several bot
// processes may share one data directory.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/dalnet/lobbybot/internal/clock"
	"github.com/dalnet/lobbybot/internal/identity"
)

// DefaultName is the document name used inside the data directory
const DefaultName = "users.json"

type document struct {
	Users []identity.Record `json:"users"`
}

// Store is a JSON-file backed identity store
type Store struct {
	mu    sync.Mutex
	path  string
	lock  *flock.Flock
	clock clock.Clock
}

// New creates a store at path. The file is created on first write.
func New(path string, clk clock.Clock) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	return &Store{
		path:  path,
		lock:  flock.New(path + ".lock"),
		clock: clk,
	}, nil
}

// Ensure Store implements the interface
var _ identity.Store = (*Store)(nil)

func (s *Store) Register(ctx context.Context, nickname, steamID string) (*identity.Record, error) {
	key, err := identity.Fold(nickname)
	if err != nil {
		return nil, err
	}

	var rec identity.Record
	err = s.update(func(records map[string]identity.Record) error {
		if _, ok := records[key]; ok {
			return identity.ErrAlreadyRegistered
		}
		rec = identity.Record{
			Nickname:  key,
			SteamID:   steamID,
			CreatedAt: s.clock.Now().UTC(),
		}
		records[key] = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) Lookup(ctx context.Context, nickname string) (*identity.Record, error) {
	key, err := identity.Fold(nickname)
	if err != nil {
		return nil, err
	}

	records, err := s.read()
	if err != nil {
		return nil, err
	}
	rec, ok := records[key]
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

	return s.update(func(records map[string]identity.Record) error {
		if _, ok := records[key]; !ok {
			return identity.ErrNotFound
		}
		delete(records, key)
		return nil
	})
}

func (s *Store) RecordUsage(ctx context.Context, nickname string) error {
	key, err := identity.Fold(nickname)
	if err != nil {
		return err
	}

	return s.update(func(records map[string]identity.Record) error {
		rec, ok := records[key]
		if !ok {
			return identity.ErrNotFound
		}
		rec.Used++
		records[key] = rec
		return nil
	})
}

func (s *Store) Stats(ctx context.Context, nickname string) (int64, time.Time, error) {
	rec, err := s.Lookup(ctx, nickname)
	if err != nil {
		return 0, time.Time{}, err
	}
	return rec.Used, rec.CreatedAt, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	records, err := s.read()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Close releases the lock file handle
func (s *Store) Close() error {
	return s.lock.Close()
}

// read loads the document under a shared lock
func (s *Store) read() (map[string]identity.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.RLock(); err != nil {
		return nil, fmt.Errorf("locking %s: %w", s.path, err)
	}
	defer s.lock.Unlock() //nolint:errcheck

	return s.loadLocked()
}

// update runs fn on the current document under an exclusive lock and writes
// the result back only if fn succeeds.
func (s *Store) update(fn func(map[string]identity.Record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("locking %s: %w", s.path, err)
	}
	defer s.lock.Unlock() //nolint:errcheck

	records, err := s.loadLocked()
	if err != nil {
		return err
	}
	if err := fn(records); err != nil {
		return err
	}
	return s.saveLocked(records)
}

// loadLocked reads the document (caller must hold both locks)
func (s *Store) loadLocked() (map[string]identity.Record, error) {
	records := make(map[string]identity.Record)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return records, nil
		}
		return nil, fmt.Errorf("reading identity store: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing identity store: %w", err)
	}
	for _, rec := range doc.Users {
		records[rec.Nickname] = rec
	}
	return records, nil
}

// saveLocked writes the document through a temp file and rename
func (s *Store) saveLocked(records map[string]identity.Record) error {
	doc := document{Users: make([]identity.Record, 0, len(records))}
	for _, rec := range records {
		doc.Users = append(doc.Users, rec)
	}
	sort.Slice(doc.Users, func(i, j int) bool {
		return doc.Users[i].Nickname < doc.Users[j].Nickname
	})

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding identity store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing identity store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing identity store: %w", err)
	}
	return nil
}
