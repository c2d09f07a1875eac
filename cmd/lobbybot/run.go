package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"

	"github.com/dalnet/lobbybot/internal/config"
	"github.com/dalnet/lobbybot/internal/factory"
	"github.com/dalnet/lobbybot/internal/irc"
)

const (
	daemonEnv = "LOBBYBOT_DAEMON"
	pidFile   = "lobbybot.pid"
	logFile   = "lobbybot.log"
)

// daemonize starts a detached copy of the process and exits the parent
func daemonize() error {
	cmd := exec.Command(os.Args[0], os.Args[1:]...)
	cmd.Env = append(os.Environ(), daemonEnv+"=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	fmt.Printf("Now becoming a daemon\nMy pid is %d\n", cmd.Process.Pid)
	return nil
}

// lockPID takes an exclusive lock on the PID file so only one bot runs per
// data directory.
func lockPID(dataDir string) (*flock.Flock, error) {
	path := filepath.Join(dataDir, pidFile)
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("another lobbybot holds %s", path)
	}
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644); err != nil {
		lock.Unlock() //nolint:errcheck
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return lock, nil
}

func run(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if os.Getenv(daemonEnv) == "1" {
		f, err := os.OpenFile(filepath.Join(cfg.DataDir, logFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		setupLogging(f, cfg.LogLevel, false)
	} else {
		setupLogging(os.Stderr, cfg.LogLevel, true)
	}

	lock, err := lockPID(cfg.DataDir)
	if err != nil {
		return err
	}
	defer lock.Unlock() //nolint:errcheck

	app, err := factory.New(ctx, cfg, version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer app.Close()

	if n, err := app.Store.Count(ctx); err == nil {
		log.Info().
			Str("driver", cfg.Store.Driver).
			Int("registered", n).
			Int("regions", app.Regions.Len()).
			Msg("Identity store ready")
	}

	client := irc.NewClient(irc.Options{
		IRC:        cfg.IRC,
		Timeout:    cfg.Commands.Timeout,
		Version:    version,
		Dispatcher: app.Service,
		Perms:      app.Gatekeeper,
		Audit:      app.Audit,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		client.Quit(5 * time.Second)
	}()

	log.Info().Str("server", cfg.IRC.Addr()).Msg("Connecting")
	if err := client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	client.Loop()
	return nil
}
