package host

import (
	"sync"

	"github.com/wozniakbe/ecolife-prefs/preferences"
)

// Static is a host whose system preferences come from configuration. Servers
// use it; SetSystemTheme lets an operator or a test flip the system theme.
type Static struct {
	*Document

	mu        sync.Mutex
	theme     string
	locale    string
	listeners map[uint64]func(string)
	next      uint64
}

var (
	_ preferences.Host                = (*Static)(nil)
	_ preferences.SystemThemeNotifier = (*Static)(nil)
)

// NewStatic returns a host reporting theme and locale. A nil doc gets a fresh
// Document.
func NewStatic(theme, locale string, doc *Document) *Static {
	if doc == nil {
		doc = NewDocument()
	}
	if !preferences.Valid(preferences.Theme, theme) {
		theme = preferences.DefaultTheme
	}
	return &Static{
		Document:  doc,
		theme:     theme,
		locale:    locale,
		listeners: make(map[uint64]func(string)),
	}
}

func (s *Static) SystemTheme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

func (s *Static) HostLocale() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locale
}

func (s *Static) OnSystemThemeChange(fn func(theme string)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SetSystemTheme changes the reported system theme and notifies listeners.
// Invalid themes and non-changes are ignored.
func (s *Static) SetSystemTheme(theme string) {
	if !preferences.Valid(preferences.Theme, theme) {
		return
	}

	s.mu.Lock()
	if s.theme == theme {
		s.mu.Unlock()
		return
	}
	s.theme = theme
	fns := make([]func(string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(theme)
	}
}
