// Package host provides the environments a preference store runs in: a
// document root that applied preferences are written to, a static host for
// servers, and a terminal host that reads the OS locale and the terminal's
// background.
package host

import (
	"sync"

	"github.com/wozniakbe/ecolife-prefs/preferences"
)

// Root attributes written when preferences are applied.
const (
	AttrTheme        = "data-theme"
	AttrLang         = "lang"
	AttrDataLanguage = "data-language"
)

// Document is a set of root-level attributes that the rest of a UI reads
// applied preferences from. It is safe for concurrent use.
type Document struct {
	mu    sync.RWMutex
	attrs map[string]string
}

// NewDocument returns a document with no attributes.
func NewDocument() *Document {
	return &Document{attrs: make(map[string]string)}
}

func (d *Document) SetAttribute(name, value string) {
	d.mu.Lock()
	d.attrs[name] = value
	d.mu.Unlock()
}

func (d *Document) Attribute(name string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.attrs[name]
	return v, ok
}

// Attributes returns a copy of every attribute.
func (d *Document) Attributes() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]string, len(d.attrs))
	for k, v := range d.attrs {
		out[k] = v
	}
	return out
}

// ApplyTheme sets data-theme.
func (d *Document) ApplyTheme(theme string) {
	d.SetAttribute(AttrTheme, theme)
}

// ApplyLanguage sets lang and data-language.
func (d *Document) ApplyLanguage(code string) {
	d.mu.Lock()
	d.attrs[AttrLang] = code
	d.attrs[AttrDataLanguage] = code
	d.mu.Unlock()
}

// Theme returns the applied theme, or the default before anything is applied.
func (d *Document) Theme() string {
	if v, ok := d.Attribute(AttrTheme); ok {
		return v
	}
	return preferences.DefaultTheme
}
