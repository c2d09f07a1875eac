// Package redis is the Redis identity store. Each record is a hash; the set
// of registered nicknames is kept alongside for counting.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dalnet/lobbybot/internal/clock"
	"github.com/dalnet/lobbybot/internal/identity"
)

// Mutations run as Lua scripts so the existence check and the write happen
// in one server-side step.
var (
	registerScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'nickname', ARGV[1], 'steam_id', ARGV[2], 'used', 0, 'created_at', ARGV[3])
redis.call('SADD', KEYS[2], ARGV[1])
return 1
`)

	usageScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
return redis.call('HINCRBY', KEYS[1], 'used', 1)
`)

	deleteScript = redis.NewScript(`
local n = redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[1])
return n
`)
)

// Storage is a Redis-backed identity store
type Storage struct {
	client *redis.Client
	cfg    Config
	clock  clock.Clock
}

// New connects to Redis and verifies the connection
func New(cfg Config, clk clock.Clock) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return NewWithClient(client, cfg, clk), nil
}

// NewWithClient creates a store on an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config, clk clock.Clock) *Storage {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	return &Storage{client: client, cfg: cfg, clock: clk}
}

// Ensure Storage implements the interface
var _ identity.Store = (*Storage)(nil)

func (s *Storage) userKey(nickname string) string {
	return fmt.Sprintf("%s:user:%s", s.cfg.KeyPrefix, nickname)
}

func (s *Storage) indexKey() string {
	return fmt.Sprintf("%s:users", s.cfg.KeyPrefix)
}

func (s *Storage) Register(ctx context.Context, nickname, steamID string) (*identity.Record, error) {
	key, err := identity.Fold(nickname)
	if err != nil {
		return nil, err
	}

	createdAt := s.clock.Now().UTC()
	created, err := registerScript.Run(ctx, s.client,
		[]string{s.userKey(key), s.indexKey()},
		key, steamID, strconv.FormatInt(createdAt.UnixNano(), 10),
	).Int()
	if err != nil {
		return nil, fmt.Errorf("registering nickname: %w", err)
	}
	if created == 0 {
		return nil, identity.ErrAlreadyRegistered
	}

	return &identity.Record{
		Nickname:  key,
		SteamID:   steamID,
		CreatedAt: createdAt,
	}, nil
}

func (s *Storage) Lookup(ctx context.Context, nickname string) (*identity.Record, error) {
	key, err := identity.Fold(nickname)
	if err != nil {
		return nil, err
	}

	fields, err := s.client.HGetAll(ctx, s.userKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("looking up nickname: %w", err)
	}
	if len(fields) == 0 {
		return nil, identity.ErrNotFound
	}
	return decodeRecord(fields)
}

func (s *Storage) Delete(ctx context.Context, nickname string) error {
	key, err := identity.Fold(nickname)
	if err != nil {
		return err
	}

	n, err := deleteScript.Run(ctx, s.client, []string{s.userKey(key), s.indexKey()}, key).Int()
	if err != nil {
		return fmt.Errorf("deleting nickname: %w", err)
	}
	if n == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (s *Storage) RecordUsage(ctx context.Context, nickname string) error {
	key, err := identity.Fold(nickname)
	if err != nil {
		return err
	}

	used, err := usageScript.Run(ctx, s.client, []string{s.userKey(key)}).Int64()
	if err != nil {
		return fmt.Errorf("recording usage: %w", err)
	}
	if used < 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (s *Storage) Stats(ctx context.Context, nickname string) (int64, time.Time, error) {
	rec, err := s.Lookup(ctx, nickname)
	if err != nil {
		return 0, time.Time{}, err
	}
	return rec.Used, rec.CreatedAt, nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return int(n), nil
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

func decodeRecord(fields map[string]string) (*identity.Record, error) {
	used, err := strconv.ParseInt(fields["used"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decoding usage counter: %w", err)
	}
	nanos, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decoding creation time: %w", err)
	}
	return &identity.Record{
		Nickname:  fields["nickname"],
		SteamID:   fields["steam_id"],
		Used:      used,
		CreatedAt: time.Unix(0, nanos).UTC(),
	}, nil
}
