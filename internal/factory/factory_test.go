package factory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dalnet/lobbybot/internal/clock"
	"github.com/dalnet/lobbybot/internal/config"
	"github.com/dalnet/lobbybot/internal/identity/file"
	"github.com/dalnet/lobbybot/internal/identity/memory"
	"github.com/dalnet/lobbybot/internal/lobby"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "key")
	require.NoError(t, os.WriteFile(keyFile, []byte("TESTKEY\n"), 0600))

	return &config.Config{
		DataDir:     filepath.Join(dir, "data"),
		KeyFile:     keyFile,
		RegionsFile: filepath.Join(dir, "locs.json"),
		Operators:   []string{"*!*@staff.dal.net"},
		Steam: config.SteamConfig{
			APIBase:       "https://api.steampowered.com",
			CommunityBase: "https://steamcommunity.com",
			Timeout:       time.Second,
		},
		Shortener: config.ShortenerConfig{BaseURL: "https://tinyurl.com/api-create.php", Timeout: time.Second},
		Store:     config.StoreConfig{Driver: config.DriverMemory},
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	clk := clock.NewMock(time.Date(2015, time.June, 1, 12, 0, 0, 0, time.UTC))

	store, err := OpenStore(ctx, cfg, clk)
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, store)
	require.NoError(t, store.Close())

	cfg.Store.Driver = config.DriverFile
	cfg.Store.File = filepath.Join(t.TempDir(), "nested", "users.json")
	store, err = OpenStore(ctx, cfg, clk)
	require.NoError(t, err)
	assert.IsType(t, &file.Store{}, store)

	_, err = store.Register(ctx, "alice", "1")
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.FileExists(t, cfg.Store.File)

	cfg.Store.Driver = "sqlite"
	_, err = OpenStore(ctx, cfg, clk)
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	cfg := testConfig(t)

	app, err := New(context.Background(), cfg, "1.0.4")
	require.NoError(t, err)
	defer app.Close()

	assert.DirExists(t, cfg.DataDir)
	assert.Equal(t, 0, app.Regions.Len())
	assert.False(t, app.Flags.Private())
	assert.True(t, app.Gatekeeper.Privileged("op", "op!op@staff.dal.net"))

	reply, ok := app.Service.Handle(context.Background(), "lobbyversion", lobby.Request{Nick: "alice"})
	require.True(t, ok)
	assert.Equal(t, "1.0.4", reply.Text)
}

func TestNewRequiresKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.KeyFile = filepath.Join(t.TempDir(), "missing")

	_, err := New(context.Background(), cfg, "1.0.4")
	assert.Error(t, err)
}
