package i18n

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/wozniakbe/ecolife-prefs/preferences"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"en.json": {Data: []byte(`{"nav": {"home": "Home", "about": "About"}, "hero": {"title": "Protect wildlife"}}`)},
		"es.json": {Data: []byte(`{"nav": {"home": "Inicio"}, "hero": {"title": ""}}`)},
		"hi.yaml": {Data: []byte("nav:\n  home: मुखपृष्ठ\n")},
		"de.json": {Data: []byte(`{"nav": {`)},
	}
}

func TestCatalog_T(t *testing.T) {
	b := NewBundle(testFS(), testLogger())
	c, err := b.Load("en")
	if err != nil {
		t.Fatal(err)
	}

	tests := map[string]string{
		"nav.home":       "Home",
		"hero.title":     "Protect wildlife",
		"nav":            "nav",
		"nav.home.extra": "nav.home.extra",
		"missing.key":    "missing.key",
		"":               "",
	}
	for key, want := range tests {
		if got := c.T(key); got != want {
			t.Errorf("T(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestBundle_LoadYAMLAndEmptyMessages(t *testing.T) {
	b := NewBundle(testFS(), testLogger())

	hi, err := b.Load("hi")
	if err != nil {
		t.Fatal(err)
	}
	if hi.Language() != "hi" || hi.T("nav.home") != "मुखपृष्ठ" {
		t.Fatalf("unexpected hi catalog: %s %q", hi.Language(), hi.T("nav.home"))
	}

	es, _ := b.Load("es")
	if got := es.T("hero.title"); got != "hero.title" {
		t.Fatalf("empty message must fall back to key, got %q", got)
	}
}

func TestBundle_FallsBackToEnglish(t *testing.T) {
	b := NewBundle(testFS(), testLogger())

	for _, lang := range []string{"fr", "de"} {
		c, err := b.Load(lang)
		if err != nil {
			t.Fatalf("Load(%s): %v", lang, err)
		}
		if c.Language() != "en" {
			t.Fatalf("Load(%s) expected en fallback, got %s", lang, c.Language())
		}
	}
}

func TestBundle_NoCatalogAtAll(t *testing.T) {
	b := NewBundle(fstest.MapFS{}, testLogger())
	if _, err := b.Load("fr"); !errors.Is(err, ErrNoCatalog) {
		t.Fatalf("expected ErrNoCatalog, got %v", err)
	}
}

func TestBundle_Caches(t *testing.T) {
	fsys := testFS()
	b := NewBundle(fsys, testLogger())

	first, _ := b.Load("es")
	delete(fsys, "es.json")
	second, err := b.Load("es")
	if err != nil || first != second {
		t.Fatalf("expected cached catalog, got %v %v", second, err)
	}
}

func TestLocalizer_FollowsStore(t *testing.T) {
	ctx := context.Background()
	store := preferences.New(nil, nil, preferences.WithLogger(testLogger()))
	if err := store.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	l, err := Bind(NewBundle(testFS(), testLogger()), store)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	if l.T("nav.home") != "Home" {
		t.Fatalf("expected English, got %q", l.T("nav.home"))
	}

	store.Set(ctx, preferences.Language, "es")
	if l.Language() != "es" || l.T("nav.home") != "Inicio" {
		t.Fatalf("expected Spanish, got %s %q", l.Language(), l.T("nav.home"))
	}

	store.Set(ctx, preferences.Language, "fr")
	if l.Language() != "en" {
		t.Fatalf("expected English fallback for fr, got %s", l.Language())
	}

	l.Close()
	store.Set(ctx, preferences.Language, "hi")
	if l.Language() != "en" {
		t.Fatal("closed localizer must stop following the store")
	}
}
