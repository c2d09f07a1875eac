package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dalnet/lobbybot/internal/auth"
	"github.com/dalnet/lobbybot/internal/config"
	"github.com/dalnet/lobbybot/internal/identity/postgres"
)

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "lobbybot",
		Short: "IRC bot that links Steam lobbies",
		Long: `lobbybot lets IRC users register their Steam profile and share a short
link to the multiplayer lobby they are in, with region and usage stats.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default ./lobbybot.yaml)")

	rootCmd.AddCommand(newRunCmd(&configPath))
	rootCmd.AddCommand(newMigrateCmd(&configPath))
	rootCmd.AddCommand(newHashPasswordCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newRunCmd(configPath *string) *cobra.Command {
	var foreground bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to IRC and serve commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !foreground && os.Getenv(daemonEnv) != "1" {
				return daemonize()
			}
			return run(cmd.Context(), *configPath)
		},
	}
	cmd.Flags().BoolVarP(&foreground, "foreground", "x", false, "Run in foreground (don't daemonize)")
	return cmd
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the PostgreSQL schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(os.Stderr, "info", true)

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Store.Driver != config.DriverPostgres {
				return fmt.Errorf("store.driver is %q, migrate only applies to postgres", cfg.Store.Driver)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			pool, err := postgres.NewPool(ctx, &cfg.Store.Postgres)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := postgres.Migrate(ctx, pool); err != nil {
				return err
			}
			log.Info().Msg("Schema is up to date")
			return nil
		},
	}
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Print the bcrypt hash of a password for admin_pass_hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "lobbybot version %s\n", version)
			fmt.Fprintf(out, "Built: %s\n", buildDate)
			fmt.Fprintf(out, "Commit: %s\n", gitCommit)
		},
	}
}

// readPassword prompts on a terminal without echo, or reads one line from
// a pipe.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return validPassword(string(b))
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return validPassword(strings.TrimRight(line, "\r\n"))
}

func validPassword(p string) (string, error) {
	if p == "" {
		return "", errors.New("empty password")
	}
	return p, nil
}

// setupLogging configures the global zerolog logger
func setupLogging(out io.Writer, level string, console bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if console {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05"}).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}
