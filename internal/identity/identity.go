// Package identity maps chat nicknames to Steam identities and tracks how
// often each registered user had a lobby link generated.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// ErrNotFound is returned when no record exists for a nickname.
	ErrNotFound = errors.New("nickname not registered")

	// ErrAlreadyRegistered is returned when registering a nickname that
	// already has a record.
	ErrAlreadyRegistered = errors.New("nickname already registered")

	// ErrInvalidNickname is returned for empty or whitespace-only nicknames.
	ErrInvalidNickname = errors.New("invalid nickname")
)

// Record is a single registered user.
type Record struct {
	// Nickname is the case-folded chat handle and the store key.
	Nickname string `json:"nickname"`
	// SteamID is the SteamID64 of the verified public profile. Write-once.
	SteamID string `json:"steam_id"`
	// Used counts successful lobby link generations.
	Used int64 `json:"used"`
	// CreatedAt is the UTC registration time.
	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence contract shared by all backends.
//
// Register, Delete and RecordUsage must each be atomic with respect to
// concurrent calls for the same nickname. RecordUsage never creates a record.
type Store interface {
	Register(ctx context.Context, nickname, steamID string) (*Record, error)
	Lookup(ctx context.Context, nickname string) (*Record, error)
	Delete(ctx context.Context, nickname string) error
	RecordUsage(ctx context.Context, nickname string) error
	Stats(ctx context.Context, nickname string) (used int64, createdAt time.Time, err error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Fold returns the store key for a nickname.
func Fold(nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return "", ErrInvalidNickname
	}
	// A Caser is stateful, so each call gets its own.
	return cases.Lower(language.Und).String(nickname), nil
}
