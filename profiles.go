package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wozniakbe/ecolife-prefs/host"
	"github.com/wozniakbe/ecolife-prefs/i18n"
	"github.com/wozniakbe/ecolife-prefs/preferences"
)

// Profile is one user's initialised preference store and the host it
// applies to.
type Profile struct {
	Store     *preferences.Store
	Host      *host.Static
	Localizer *i18n.Localizer
}

// ClientHints carries the system preferences a client reported.
type ClientHints struct {
	Theme  string
	Locale string
}

// Profiles hands out preference stores per user.
type Profiles interface {
	Open(ctx context.Context, userID string, hints ClientHints) (*Profile, error)
}

// ProfileSet creates each user's store on first use and keeps it for the
// life of the process.
type ProfileSet struct {
	open          func(profile string) (preferences.Backend, error)
	defaultTheme  string
	defaultLocale string
	bundle        *i18n.Bundle
	logger        *slog.Logger

	mu       sync.Mutex
	profiles map[string]*Profile
}

// NewProfileSet returns an empty set. bundle may be nil to disable message
// lookups.
func NewProfileSet(open func(string) (preferences.Backend, error), cfg Config, bundle *i18n.Bundle, logger *slog.Logger) *ProfileSet {
	return &ProfileSet{
		open:          open,
		defaultTheme:  cfg.DefaultTheme,
		defaultLocale: cfg.DefaultLocale,
		bundle:        bundle,
		logger:        logger,
		profiles:      make(map[string]*Profile),
	}
}

// Open returns userID's profile. A new profile's host reports the client's
// hints, falling back to the configured defaults; an existing profile's host
// is updated with a reported theme so defaulted themes follow the client.
func (ps *ProfileSet) Open(ctx context.Context, userID string, hints ClientHints) (*Profile, error) {
	ps.mu.Lock()
	p, ok := ps.profiles[userID]
	ps.mu.Unlock()
	if ok {
		if hints.Theme != "" {
			p.Host.SetSystemTheme(hints.Theme)
		}
		return p, nil
	}

	p, err := ps.create(ctx, userID, hints)
	if err != nil {
		return nil, err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	if existing, ok := ps.profiles[userID]; ok {
		p.close()
		return existing, nil
	}
	ps.profiles[userID] = p
	return p, nil
}

func (ps *ProfileSet) create(ctx context.Context, userID string, hints ClientHints) (*Profile, error) {
	b, err := ps.open(userID)
	if err != nil {
		return nil, fmt.Errorf("opening backend: %w", err)
	}

	theme := ps.defaultTheme
	if hints.Theme != "" {
		theme = hints.Theme
	}
	locale := ps.defaultLocale
	if hints.Locale != "" {
		locale = hints.Locale
	}

	h := host.NewStatic(theme, locale, nil)
	store := preferences.New(b, h, preferences.WithLogger(ps.logger.With("userId", userID)))
	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("initializing preferences: %w", err)
	}

	p := &Profile{Store: store, Host: h}
	if ps.bundle != nil {
		l, err := i18n.Bind(ps.bundle, store)
		if err != nil {
			ps.logger.Warn("translations unavailable", "userId", userID, "error", err)
		} else {
			p.Localizer = l
		}
	}
	return p, nil
}

func (p *Profile) close() {
	if p.Localizer != nil {
		p.Localizer.Close()
	}
	p.Store.Close()
}

// Close tears down every profile.
func (ps *ProfileSet) Close() {
	ps.mu.Lock()
	profiles := ps.profiles
	ps.profiles = make(map[string]*Profile)
	ps.mu.Unlock()

	for _, p := range profiles {
		p.close()
	}
}
