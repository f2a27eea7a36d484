package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wozniakbe/ecolife-prefs/preferences"
)

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Print all preferences, or the value of one key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, release, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			if len(args) == 1 {
				v, err := s.Get(preferences.Key(args[0]))
				if err != nil {
					return fmt.Errorf("%w: %s", err, args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			}
			printPreferences(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func (a *app) setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a preference",
		Long: fmt.Sprintf(`Store a preference for the profile.

Themes: %s
Languages: see "prefctl languages"`, strings.Join(preferences.Themes(), ", ")),
		Example: `  prefctl set theme dark
  prefctl set language de`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, release, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			key := preferences.Key(args[0])
			if !s.Set(cmd.Context(), key, args[1]) {
				return fmt.Errorf("invalid value %q for %s", args[1], key)
			}
			v, _ := s.Get(key)
			printPair(cmd.OutOrStdout(), key, v, s.State(key))
			return nil
		},
	}
}

func (a *app) toggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle",
		Short: "Switch the theme between light and dark",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, release, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			theme := s.ToggleTheme(cmd.Context())
			printPair(cmd.OutOrStdout(), preferences.Theme, theme, s.State(preferences.Theme))
			return nil
		},
	}
}

func (a *app) resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget explicit choices and use system defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, release, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			s.Reset(cmd.Context())
			printPreferences(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func (a *app) languagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported languages, marking the current one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, release, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			current, _ := s.Get(preferences.Language)
			printLanguages(cmd.OutOrStdout(), s.AvailableLanguages(), current)
			return nil
		},
	}
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print preference changes until interrupted",
		Long: `Print preference changes as they happen, including changes made by other
processes sharing the profile and terminal background changes while the
theme is not set explicitly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, release, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer release()

			return watch(ctx, s, a.profile, cmd.OutOrStdout())
		},
	}
}

// watch prints every change notification until ctx is done.
func watch(ctx context.Context, s *preferences.Store, profile string, w io.Writer) error {
	events := make(chan preferences.Event, 16)
	unsubscribe := s.Subscribe(preferences.All, func(_ string, ev preferences.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	defer unsubscribe()

	fmt.Fprintf(w, "watching %s\n", profile)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			printEvent(w, ev)
		}
	}
}
