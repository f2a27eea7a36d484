package preferences

import "context"

// Backend is the persistent key-value store preferences are written to.
// Keys are storage keys (see StorageKey).
type Backend interface {
	Read(ctx context.Context, key string) (value string, found bool, err error)
	Write(ctx context.Context, key string, value string) error
}

// ChangeNotifier is implemented by backends that can report writes made by
// someone else (another process, another session on a shared area).
type ChangeNotifier interface {
	OnExternalChange(fn func(key, value string)) (cancel func(), err error)
}

// Host is the environment a store runs in: it answers system preference
// queries and makes applied preferences observable to the rest of the UI.
type Host interface {
	// SystemTheme returns ThemeDark or ThemeLight.
	SystemTheme() string
	// HostLocale returns the host's preferred locale, e.g. "pt-BR".
	HostLocale() string
	ApplyTheme(theme string)
	ApplyLanguage(code string)
}

// SystemThemeNotifier is implemented by hosts that report OS theme changes.
type SystemThemeNotifier interface {
	OnSystemThemeChange(fn func(theme string)) (cancel func())
}
