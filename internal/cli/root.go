// Package cli wires configuration, storage and screens into the
// personaltasks command tree.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"personaltasks/internal/auth"
	"personaltasks/internal/config"
	"personaltasks/internal/server"
	"personaltasks/internal/storage/memory"
	"personaltasks/internal/storage/sqlite"
	"personaltasks/internal/tasks"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	cfg        config.Config
}

// NewRootCommand creates the personaltasks command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "personaltasks",
		Short:         "Personal task list with a terminal UI and an HTTP API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// config init must work before any file exists.
			if cmd.Name() == "init" {
				return nil
			}
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				cfg.LogLevel = a.logLevel
			}
			a.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file (default ./"+config.DefaultFile+" when present)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		newServeCommand(a),
		newTUICommand(a),
		newListCommand(a),
		newTokenCommand(a),
		newConfigCommand(a),
	)
	return root
}

func (a *app) newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: a.cfg.Level()}))
}

// fileLogger logs to the configured log file, or nowhere, so full screen
// output is not disturbed.
func (a *app) fileLogger() (*slog.Logger, func() error, error) {
	if a.cfg.LogFile == "" {
		return a.newLogger(io.Discard), func() error { return nil }, nil
	}
	f, err := os.OpenFile(a.cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return a.newLogger(f), f.Close, nil
}

func (a *app) tokens() *auth.Manager {
	return auth.NewManager(auth.Config{
		Secret:   a.cfg.Auth.Secret,
		Issuer:   a.cfg.Auth.Issuer,
		TokenTTL: a.cfg.Auth.TokenTTL,
	})
}

// backend is an opened task store shared by all users.
type backend struct {
	forUser server.StoreFunc
	pinger  server.Pinger
	close   func() error
}

func (a *app) openBackend(logger *slog.Logger) (*backend, error) {
	switch a.cfg.Store {
	case config.StoreMemory:
		store := memory.New(logger)
		return &backend{
			forUser: func(userID string) tasks.Store { return store.ForUser(userID) },
			close:   func() error { return nil },
		}, nil
	default:
		store, err := sqlite.Open(a.cfg.DBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("unable to open database: %w", err)
		}
		return &backend{
			forUser: func(userID string) tasks.Store { return store.ForUser(userID) },
			pinger:  store,
			close:   store.Close,
		}, nil
	}
}

// localUser resolves the user namespace for local screens: a token wins
// over the user name.
func (a *app) localUser(user, token string) (string, error) {
	if token != "" {
		return a.tokens().UserID(token)
	}
	if user == "" {
		user = a.cfg.LocalUser
	}
	return user, nil
}
