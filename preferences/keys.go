package preferences

import "strings"

// Key identifies one of the known preferences.
type Key string

const (
	Theme    Key = "theme"
	Language Key = "language"
)

// Topic is a subscription target: a Key name or All.
type Topic = string

// All is the topic that receives every preference change.
const All Topic = "all"

const (
	ThemeLight = "light"
	ThemeDark  = "dark"

	DefaultTheme    = ThemeLight
	DefaultLanguage = "en"
)

// Storage keys used in the persistent backend.
const (
	ThemeStorageKey    = "ecolife_theme"
	LanguageStorageKey = "ecolife_language"
)

var themes = []string{ThemeLight, ThemeDark}

// definition describes how a key is stored, validated and defaulted.
type definition struct {
	key        Key
	storageKey string
	fallback   string
	normalize  func(string) string
	allowed    func(string) bool
}

var definitions = []definition{
	{
		key:        Theme,
		storageKey: ThemeStorageKey,
		fallback:   DefaultTheme,
		normalize:  func(v string) string { return v },
		allowed:    isTheme,
	},
	{
		key:        Language,
		storageKey: LanguageStorageKey,
		fallback:   DefaultLanguage,
		normalize:  strings.ToLower,
		allowed:    isLanguage,
	},
}

// Keys returns the known preference keys in a stable order.
func Keys() []Key {
	keys := make([]Key, len(definitions))
	for i, d := range definitions {
		keys[i] = d.key
	}
	return keys
}

// Themes returns the theme allow-list.
func Themes() []string {
	return append([]string(nil), themes...)
}

// StorageKey returns the backend key for k.
func StorageKey(k Key) (string, bool) {
	d, ok := lookup(k)
	if !ok {
		return "", false
	}
	return d.storageKey, true
}

// Valid reports whether value is in the allow-list for key, after the key's
// normalization (language codes are case-insensitive, themes are not).
func Valid(key Key, value string) bool {
	d, ok := lookup(key)
	if !ok {
		return false
	}
	return d.allowed(d.normalize(value))
}

func lookup(k Key) (definition, bool) {
	for _, d := range definitions {
		if d.key == k {
			return d, true
		}
	}
	return definition{}, false
}

func lookupStorage(storageKey string) (definition, bool) {
	for _, d := range definitions {
		if d.storageKey == storageKey {
			return d, true
		}
	}
	return definition{}, false
}

func isTheme(v string) bool {
	for _, t := range themes {
		if t == v {
			return true
		}
	}
	return false
}

func validTopic(topic Topic) bool {
	if topic == All {
		return true
	}
	_, ok := lookup(Key(topic))
	return ok
}
