// Package preferences implements a validated, persisted preference store
// with change notification.
//
// A Store holds one value per known Key. Values are read from a Backend at
// Init, falling back to host-derived defaults, and every accepted change is
// written back, applied to the Host and fanned out to subscribers:
//
//	store := preferences.New(backend, host, preferences.WithLogger(logger))
//	if err := store.Init(ctx); err != nil {
//		return err
//	}
//	defer store.Close()
//
//	unsubscribe := store.Subscribe(string(preferences.Theme), func(value string, ev preferences.Event) {
//		fmt.Println("theme is now", value)
//	})
//	defer unsubscribe()
//
//	store.Set(ctx, preferences.Theme, preferences.ThemeDark)
//
// Init is not guarded against repeated calls; callers own that.
package preferences

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Store is the source of truth for a small set of named preferences.
// It is safe for concurrent use. Handlers run synchronously on the goroutine
// that caused the change and may call back into the store.
type Store struct {
	backend Backend
	host    Host
	logger  *slog.Logger
	now     func() time.Time

	// writeMu orders mutations: memory, backend, host apply.
	writeMu sync.Mutex

	mu      sync.RWMutex
	values  map[Key]string
	states  map[Key]State
	cancels []func()

	subs *registry
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for warnings and best-effort failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock sets the clock used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store. A nil backend keeps preferences in memory only; a nil
// host reports a light system theme and no locale. Until Init runs every key
// holds its hard-coded default.
func New(backend Backend, host Host, opts ...Option) *Store {
	if backend == nil {
		backend = memoryOnly{}
	}
	if host == nil {
		host = headless{}
	}

	s := &Store{
		backend: backend,
		host:    host,
		logger:  slog.Default(),
		now:     time.Now,
		values:  make(map[Key]string, len(definitions)),
		states:  make(map[Key]State, len(definitions)),
		subs:    newRegistry(),
	}
	for _, d := range definitions {
		s.values[d.key] = d.fallback
		s.states[d.key] = Uninitialized
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type storedValue struct {
	value string
	found bool
}

// Init loads every key from the backend, falling back to system defaults,
// applies the results to the host and starts following system and external
// changes. Backend failures are logged and treated as missing values; the
// only error returned is the context's.
func (s *Store) Init(ctx context.Context) error {
	s.stopWatching()

	stored := make([]storedValue, len(definitions))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range definitions {
		g.Go(func() error {
			v, found, err := s.backend.Read(gctx, d.storageKey)
			if err != nil {
				s.logger.Error("backend read failed", "key", d.storageKey, "error", err)
				return nil
			}
			stored[i] = storedValue{value: v, found: found}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	for i, d := range definitions {
		chain := append([]provider{storedProvider(stored[i])}, defaultChain(d, s.host)...)
		res := resolve(ctx, d, chain)

		if res.origin == Defaulted {
			s.persist(ctx, d, res.value)
		}

		s.mu.Lock()
		s.values[d.key] = res.value
		s.states[d.key] = res.origin
		s.mu.Unlock()

		s.apply(d.key, res.value)
		s.logger.Debug("preference loaded", "key", d.key, "value", res.value, "from", res.from)
	}
	s.writeMu.Unlock()

	s.watch()

	s.logger.Info("preferences initialized", "theme", s.value(Theme), "language", s.value(Language))
	return nil
}

func storedProvider(sv storedValue) provider {
	return provider{
		name:   "stored",
		origin: Explicit,
		value: func(context.Context) (string, bool) {
			return sv.value, sv.found && sv.value != ""
		},
	}
}

func (s *Store) watch() {
	var cancels []func()

	if n, ok := s.host.(SystemThemeNotifier); ok {
		cancels = append(cancels, n.OnSystemThemeChange(s.systemThemeChanged))
	}

	if n, ok := s.backend.(ChangeNotifier); ok {
		cancel, err := n.OnExternalChange(s.externalChange)
		if err != nil {
			s.logger.Warn("external change notifications unavailable", "error", err)
		} else {
			cancels = append(cancels, cancel)
		}
	}

	s.mu.Lock()
	s.cancels = cancels
	s.mu.Unlock()
}

// stopWatching cancels change registrations. It must not run under writeMu:
// cancellation may wait for a callback that is itself waiting for writeMu.
func (s *Store) stopWatching() {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Get returns the current value of key.
func (s *Store) Get(key Key) (string, error) {
	if _, ok := lookup(key); !ok {
		return "", ErrUnknownKey
	}
	return s.value(key), nil
}

func (s *Store) value(key Key) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// State reports where key's current value came from.
func (s *Store) State(key Key) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[key]
}

// GetAll returns a snapshot of every preference.
func (s *Store) GetAll() map[Key]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[Key]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// States returns a snapshot of every key's state.
func (s *Store) States() map[Key]State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[Key]State, len(s.states))
	for k, st := range s.states {
		out[k] = st
	}
	return out
}

// Set validates and stores value for key. It returns false, with no side
// effects, for unknown keys and values outside the allow-list. Setting the
// current value returns true without writing or notifying.
func (s *Store) Set(ctx context.Context, key Key, value string) bool {
	return s.set(ctx, key, value, SourceSet)
}

// ToggleTheme flips between light and dark and returns the new theme.
func (s *Store) ToggleTheme(ctx context.Context) string {
	next := ThemeDark
	if s.value(Theme) == ThemeDark {
		next = ThemeLight
	}
	s.Set(ctx, Theme, next)
	return next
}

// Reset discards explicit choices: every key is recomputed from the system
// defaults and stored with Set semantics.
func (s *Store) Reset(ctx context.Context) {
	for _, d := range definitions {
		res := resolve(ctx, d, defaultChain(d, s.host))
		s.set(ctx, d.key, res.value, SourceReset)
	}
}

// AvailableLanguages returns the language allow-list with display names.
func (s *Store) AvailableLanguages() []LanguageInfo {
	return AvailableLanguages()
}

// Subscribe registers h for a key topic or All. Unknown topics are logged and
// get a no-op unsubscribe. The returned func removes exactly this
// registration and is safe to call more than once.
func (s *Store) Subscribe(topic Topic, h Handler) (unsubscribe func()) {
	if !validTopic(topic) {
		s.logger.Warn("unknown subscription topic", "topic", topic)
		return func() {}
	}
	if h == nil {
		s.logger.Warn("nil subscription handler", "topic", topic)
		return func() {}
	}
	return s.subs.add(topic, h)
}

// Close stops following system and external changes and drops every
// subscription. The store stays readable and writable.
func (s *Store) Close() {
	s.stopWatching()
	s.subs.clear()
}

func (s *Store) set(ctx context.Context, key Key, value string, src Source) bool {
	d, ok := lookup(key)
	if !ok {
		s.logger.Warn("unknown preference key", "key", key)
		return false
	}

	value = d.normalize(value)
	if !d.allowed(value) {
		s.logger.Warn("invalid preference value", "key", key, "value", value)
		return false
	}

	state := Explicit
	if src == SourceReset || src == SourceSystem {
		state = Defaulted
	}

	s.writeMu.Lock()
	if src == SourceSystem && s.State(key) != Defaulted {
		s.writeMu.Unlock()
		return false
	}
	ev, changed := s.commit(ctx, d, value, state, src, true)
	s.writeMu.Unlock()

	if changed {
		s.notify(ev)
	}
	return true
}

// commit updates memory and, when persist is set, the backend, then applies
// the value to the host. Callers hold writeMu. Unchanged values only matter
// for Reset, which returns the key to Defaulted.
func (s *Store) commit(ctx context.Context, d definition, value string, state State, src Source, persist bool) (Event, bool) {
	s.mu.Lock()
	if s.values[d.key] == value {
		if src == SourceReset {
			s.states[d.key] = Defaulted
		}
		s.mu.Unlock()
		return Event{}, false
	}
	s.values[d.key] = value
	s.states[d.key] = state
	s.mu.Unlock()

	if persist {
		s.persist(ctx, d, value)
	}
	s.apply(d.key, value)

	return Event{Topic: d.key, Value: value, Timestamp: s.now(), Source: src}, true
}

func (s *Store) persist(ctx context.Context, d definition, value string) {
	if err := s.backend.Write(ctx, d.storageKey, value); err != nil {
		s.logger.Error("backend write failed", "key", d.storageKey, "error", err)
	}
}

func (s *Store) apply(key Key, value string) {
	switch key {
	case Theme:
		s.host.ApplyTheme(value)
	case Language:
		s.host.ApplyLanguage(value)
	}
}

func (s *Store) systemThemeChanged(theme string) {
	if s.State(Theme) != Defaulted {
		s.logger.Debug("ignoring system theme change, theme set explicitly", "theme", theme)
		return
	}
	s.set(context.Background(), Theme, theme, SourceSystem)
}

// externalChange adopts a value written by someone else. It never writes
// back, and values equal to the current one are dropped as echoes.
func (s *Store) externalChange(storageKey, value string) {
	d, ok := lookupStorage(storageKey)
	if !ok || value == "" {
		return
	}
	value = d.normalize(value)
	if !d.allowed(value) {
		s.logger.Warn("ignoring invalid external value", "key", storageKey, "value", value)
		return
	}

	s.writeMu.Lock()
	ev, changed := s.commit(context.Background(), d, value, Explicit, SourceExternal, false)
	s.writeMu.Unlock()

	if changed {
		s.notify(ev)
	}
}

// notify calls key subscribers, then All subscribers. A panicking handler is
// logged and does not stop the others.
func (s *Store) notify(ev Event) {
	for _, h := range s.subs.snapshot(string(ev.Topic)) {
		s.deliver(string(ev.Topic), h, ev)
	}
	for _, h := range s.subs.snapshot(All) {
		s.deliver(All, h, ev)
	}
}

func (s *Store) deliver(topic Topic, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("subscriber panicked", "topic", topic, "panic", r)
		}
	}()
	h(ev.Value, ev)
}

type memoryOnly struct{}

func (memoryOnly) Read(context.Context, string) (string, bool, error) { return "", false, nil }
func (memoryOnly) Write(context.Context, string, string) error        { return nil }

type headless struct{}

func (headless) SystemTheme() string  { return ThemeLight }
func (headless) HostLocale() string   { return "" }
func (headless) ApplyTheme(string)    {}
func (headless) ApplyLanguage(string) {}
