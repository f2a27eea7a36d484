package host

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/wozniakbe/ecolife-prefs/preferences"
)

// DefaultPollInterval is how often Terminal re-checks the background color.
const DefaultPollInterval = 5 * time.Second

// Terminal is a host for command-line tools. The system theme follows the
// terminal's background, the locale follows the usual POSIX variables, and
// applying a theme switches lipgloss between its light and dark palettes.
type Terminal struct {
	*Document

	interval time.Duration
	dark     func() bool
	getenv   func(string) string
}

var (
	_ preferences.Host                = (*Terminal)(nil)
	_ preferences.SystemThemeNotifier = (*Terminal)(nil)
)

// NewTerminal returns a terminal host polling the background every interval.
func NewTerminal(interval time.Duration) *Terminal {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Terminal{
		Document: NewDocument(),
		interval: interval,
		dark:     lipgloss.HasDarkBackground,
		getenv:   os.Getenv,
	}
}

func (t *Terminal) SystemTheme() string {
	if t.dark() {
		return preferences.ThemeDark
	}
	return preferences.ThemeLight
}

// HostLocale returns the first set of LC_ALL, LC_MESSAGES, LANG and the
// first entry of LANGUAGE.
func (t *Terminal) HostLocale() string {
	for _, name := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := t.getenv(name); v != "" {
			return v
		}
	}
	if v := t.getenv("LANGUAGE"); v != "" {
		first, _, _ := strings.Cut(v, ":")
		return first
	}
	return ""
}

func (t *Terminal) ApplyTheme(theme string) {
	t.Document.ApplyTheme(theme)
	lipgloss.SetHasDarkBackground(theme == preferences.ThemeDark)
}

// OnSystemThemeChange polls the terminal background and calls fn when it
// flips. The returned func stops polling and waits for the poller to exit.
func (t *Terminal) OnSystemThemeChange(fn func(theme string)) func() {
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	last := t.SystemTheme()

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				if theme := t.SystemTheme(); theme != last {
					last = theme
					fn(theme)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-doneCh
		})
	}
}
