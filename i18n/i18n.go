// Package i18n loads translation catalogs and keeps one in step with a
// preference store's language.
//
// Catalogs are nested documents, one file per language, named <code>.json,
// <code>.yaml or <code>.yml. Keys are looked up by dotted path:
//
//	{"nav": {"home": "Inicio"}}   →   T("nav.home") == "Inicio"
package i18n

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/wozniakbe/ecolife-prefs/preferences"
)

// FallbackLanguage is loaded when a language's catalog is missing or broken.
const FallbackLanguage = preferences.DefaultLanguage

var extensions = []string{".json", ".yaml", ".yml"}

// ErrNoCatalog is returned when neither the language nor the fallback has a
// catalog.
var ErrNoCatalog = errors.New("no translation catalog")

// Catalog holds one language's messages.
type Catalog struct {
	lang     string
	messages map[string]any
}

// Language returns the catalog's language code.
func (c *Catalog) Language() string {
	return c.lang
}

// T returns the message at the dotted key, or the key itself when the path
// does not lead to a string.
func (c *Catalog) T(key string) string {
	var node any = c.messages
	for _, part := range strings.Split(key, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return key
		}
		if node, ok = m[part]; !ok {
			return key
		}
	}
	if s, ok := node.(string); ok && s != "" {
		return s
	}
	return key
}

// Bundle loads and caches catalogs from a filesystem.
type Bundle struct {
	fsys   fs.FS
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*Catalog
}

// NewBundle returns a bundle reading catalogs from the root of fsys.
func NewBundle(fsys fs.FS, logger *slog.Logger) *Bundle {
	return &Bundle{fsys: fsys, logger: logger, cache: make(map[string]*Catalog)}
}

// Load returns lang's catalog, or the fallback language's catalog when lang
// cannot be loaded.
func (b *Bundle) Load(lang string) (*Catalog, error) {
	c, err := b.load(lang)
	if err == nil {
		return c, nil
	}
	if lang == FallbackLanguage {
		return nil, err
	}

	b.logger.Warn("translation catalog unavailable, using fallback", "language", lang, "error", err)
	return b.load(FallbackLanguage)
}

func (b *Bundle) load(lang string) (*Catalog, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.cache[lang]; ok {
		return c, nil
	}

	for _, ext := range extensions {
		data, err := fs.ReadFile(b.fsys, lang+ext)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s%s: %w", lang, ext, err)
		}

		messages := map[string]any{}
		if err := yaml.Unmarshal(data, &messages); err != nil {
			return nil, fmt.Errorf("parsing %s%s: %w", lang, ext, err)
		}

		c := &Catalog{lang: lang, messages: messages}
		b.cache[lang] = c
		return c, nil
	}
	return nil, fmt.Errorf("%w for %q", ErrNoCatalog, lang)
}

// Localizer tracks the catalog for a store's current language.
type Localizer struct {
	bundle      *Bundle
	logger      *slog.Logger
	unsubscribe func()

	mu      sync.RWMutex
	current *Catalog
}

// Bind loads the catalog for store's language and swaps it whenever the
// language preference changes.
func Bind(bundle *Bundle, store *preferences.Store) (*Localizer, error) {
	lang, err := store.Get(preferences.Language)
	if err != nil {
		return nil, err
	}
	c, err := bundle.Load(lang)
	if err != nil {
		return nil, err
	}

	l := &Localizer{bundle: bundle, logger: bundle.logger, current: c}
	l.unsubscribe = store.Subscribe(string(preferences.Language), func(code string, _ preferences.Event) {
		l.setLanguage(code)
	})
	return l, nil
}

func (l *Localizer) setLanguage(code string) {
	if l.Language() == code {
		return
	}
	c, err := l.bundle.Load(code)
	if err != nil {
		l.logger.Error("loading translations", "language", code, "error", err)
		return
	}

	l.mu.Lock()
	l.current = c
	l.mu.Unlock()
}

// Language returns the language of the catalog in use. It differs from the
// store's language when that language fell back.
func (l *Localizer) Language() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current.Language()
}

// T translates key in the current catalog.
func (l *Localizer) T(key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current.T(key)
}

// Close stops following the store.
func (l *Localizer) Close() {
	l.unsubscribe()
}
