// Package factory wires the bot's components from a loaded configuration.
package factory

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/dalnet/lobbybot/internal/auth"
	"github.com/dalnet/lobbybot/internal/clock"
	"github.com/dalnet/lobbybot/internal/config"
	"github.com/dalnet/lobbybot/internal/identity"
	"github.com/dalnet/lobbybot/internal/identity/file"
	"github.com/dalnet/lobbybot/internal/identity/memory"
	"github.com/dalnet/lobbybot/internal/identity/postgres"
	redisstore "github.com/dalnet/lobbybot/internal/identity/redis"
	"github.com/dalnet/lobbybot/internal/lobby"
	"github.com/dalnet/lobbybot/internal/markup"
	"github.com/dalnet/lobbybot/internal/modes"
	"github.com/dalnet/lobbybot/internal/region"
	"github.com/dalnet/lobbybot/internal/shortener"
	"github.com/dalnet/lobbybot/internal/steam"
	"github.com/dalnet/lobbybot/internal/storage"
)

// App contains all wired application components
type App struct {
	Store      identity.Store
	Service    *lobby.Service
	Gatekeeper *auth.Gatekeeper
	Audit      *storage.AuditLog
	Flags      *modes.Flags
	Regions    *region.Table
}

// Close releases the identity store
func (a *App) Close() error {
	return a.Store.Close()
}

// OpenStore opens the identity store selected by store.driver. The Postgres
// schema is migrated on open.
func OpenStore(ctx context.Context, cfg *config.Config, clk clock.Clock) (identity.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return memory.New(clk), nil

	case config.DriverFile:
		return file.New(cfg.StoreFile(), clk)

	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, &cfg.Store.Postgres)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return postgres.New(pool, clk), nil

	case config.DriverRedis:
		return redisstore.New(redisstore.Config{
			URL:       cfg.Store.Redis.URL,
			PoolSize:  cfg.Store.Redis.PoolSize,
			KeyPrefix: cfg.Store.Redis.KeyPrefix,
		}, clk)

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// New opens the store and builds every component the bot needs
func New(ctx context.Context, cfg *config.Config, version string) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	key, err := config.LoadKey(cfg.KeyFile)
	if err != nil {
		return nil, err
	}

	regions, err := region.Load(cfg.RegionsFile)
	if err != nil {
		return nil, err
	}
	if regions.Len() == 0 {
		log.Warn().Str("path", cfg.RegionsFile).Msg("No regions loaded, every region will show as N/A")
	}

	gateway, err := steam.New(steam.Config{
		APIBase:       cfg.Steam.APIBase,
		CommunityBase: cfg.Steam.CommunityBase,
		Key:           key,
		Timeout:       cfg.Steam.Timeout,
	})
	if err != nil {
		return nil, err
	}

	gatekeeper, err := auth.New(cfg.Operators, cfg.AdminPassHash)
	if err != nil {
		return nil, err
	}

	clk := clock.New()
	audit, err := storage.OpenAuditLog(cfg.DataDir, clk)
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(ctx, cfg, clk)
	if err != nil {
		return nil, err
	}

	flags := modes.New(cfg.PrivateReplies)
	svc := lobby.New(lobby.Deps{
		Store:     store,
		Gateway:   gateway,
		Shortener: shortener.New(cfg.Shortener.BaseURL, cfg.Shortener.Timeout),
		Extractor: markup.Steam{},
		Regions:   regions,
		Flags:     flags,
		Audit:     audit,
		Version:   version,
	})

	return &App{
		Store:      store,
		Service:    svc,
		Gatekeeper: gatekeeper,
		Audit:      audit,
		Flags:      flags,
		Regions:    regions,
	}, nil
}
