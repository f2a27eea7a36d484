package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/wozniakbe/ecolife-prefs/backend"
	"github.com/wozniakbe/ecolife-prefs/host"
	"github.com/wozniakbe/ecolife-prefs/preferences"
)

const (
	backendFile   = "file"
	backendBadger = "badger"
)

// app holds the flags shared by every subcommand.
type app struct {
	backend  string
	dir      string
	profile  string
	logLevel string
	poll     time.Duration

	newHost func(poll time.Duration) preferences.Host
	logger  *slog.Logger
}

func defaultApp() *app {
	return &app{
		newHost: func(poll time.Duration) preferences.Host { return host.NewTerminal(poll) },
	}
}

func defaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "ecolife")
	}
	return ".ecolife"
}

func defaultProfile() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "default"
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "prefctl",
		Short: "Inspect and change EcoLife display preferences",
		Long: `Inspect and change the theme and language preferences of an EcoLife profile.

Values are validated before they are stored. A theme that was never chosen
explicitly follows the terminal background.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(a.logLevel)); err != nil {
				return fmt.Errorf("invalid --log-level: %w", err)
			}
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.backend, "backend", backendFile, "storage backend: file or badger")
	flags.StringVar(&a.dir, "dir", defaultDir(), "directory holding preference data")
	flags.StringVarP(&a.profile, "profile", "p", defaultProfile(), "profile whose preferences to use")
	flags.StringVar(&a.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	flags.DurationVar(&a.poll, "poll", host.DefaultPollInterval, "how often watch re-checks the terminal background")

	root.AddCommand(
		a.getCmd(),
		a.setCmd(),
		a.toggleCmd(),
		a.resetCmd(),
		a.languagesCmd(),
		a.watchCmd(),
	)
	return root
}

// open initialises the profile's store. The returned func releases it.
func (a *app) open(ctx context.Context) (*preferences.Store, func(), error) {
	var (
		b       preferences.Backend
		release = func() {}
	)

	switch a.backend {
	case backendFile:
		f, err := backend.NewFile(a.dir, a.profile, a.logger)
		if err != nil {
			return nil, nil, err
		}
		a.logger.Debug("using preferences file", "path", f.Path())
		b = f

	case backendBadger:
		db, err := backend.OpenBadger(filepath.Join(a.dir, "badger"))
		if err != nil {
			return nil, nil, err
		}
		b = backend.NewBadger(db, a.profile, a.logger)
		release = func() {
			if err := db.Close(); err != nil {
				a.logger.Error("closing badger failed", "error", err)
			}
		}

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", a.backend)
	}

	s := preferences.New(b, a.newHost(a.poll), preferences.WithLogger(a.logger.With("profile", a.profile)))
	if err := s.Init(ctx); err != nil {
		s.Close()
		release()
		return nil, nil, err
	}

	return s, func() {
		s.Close()
		release()
	}, nil
}
