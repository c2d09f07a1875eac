package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/dalnet/lobbybot/internal/clock"
	"github.com/dalnet/lobbybot/internal/identity"
	"github.com/dalnet/lobbybot/internal/identity/identitytest"
)

func TestStorageSuite(t *testing.T) {
	suite.Run(t, &identitytest.StoreSuite{
		NewStore: func(clk clock.Clock) identity.Store {
			mini := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
			return NewWithClient(client, DefaultConfig(), clk)
		},
	})
}

func TestStorageKeyLayout(t *testing.T) {
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	cfg := DefaultConfig()
	cfg.KeyPrefix = "test"
	store := NewWithClient(client, cfg, clock.NewMock(identitytest.Epoch))
	defer store.Close()

	_, err := store.Register(context.Background(), "Alice", "76561197960287930")
	require.NoError(t, err)

	assert.Equal(t, "76561197960287930", mini.HGet("test:user:alice", "steam_id"))
	assert.Equal(t, "0", mini.HGet("test:user:alice", "used"))
	members, err := mini.Members("test:users")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, members)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Config{URL: "not-a-url"}, clock.New())
	assert.Error(t, err)
}
