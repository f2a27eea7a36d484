package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wozniakbe/ecolife-prefs/backend"
	"github.com/wozniakbe/ecolife-prefs/i18n"
	"github.com/wozniakbe/ecolife-prefs/preferences"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// withClaims returns a request with JWT claims set in context.
func withClaims(r *http.Request, sub string) *http.Request {
	ctx := context.WithValue(r.Context(), claimsKey, Claims{Subject: sub})
	return r.WithContext(ctx)
}

type testEnv struct {
	areas    *backend.MemoryAreas
	profiles *ProfileSet
	router   http.Handler
}

func newTestEnv(t *testing.T, bundle *i18n.Bundle) *testEnv {
	t.Helper()
	areas := backend.NewMemoryAreas()
	cfg := Config{
		JWTSecret:       testSecret,
		CORSAllowOrigin: "*",
		DefaultTheme:    "light",
		DefaultLocale:   "en",
	}
	open := func(profile string) (preferences.Backend, error) {
		return areas.Area(profile).Session(), nil
	}
	profiles := NewProfileSet(open, cfg, bundle, testLogger())
	t.Cleanup(profiles.Close)

	h := NewPreferencesHandler(profiles, testLogger())
	return &testEnv{areas: areas, profiles: profiles, router: NewRouter(h, cfg, testLogger())}
}

func (e *testEnv) do(t *testing.T, method, path, user string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+makeToken(user, testSecret, jwt.SigningMethodHS256))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "GET", "/healthz", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestLanguages_Public(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "GET", "/api/v1/languages", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	resp := decode[LanguagesResponse](t, w)
	if len(resp.Languages) != len(preferences.AvailableLanguages()) {
		t.Fatalf("expected %d languages, got %d", len(preferences.AvailableLanguages()), len(resp.Languages))
	}
	if resp.Languages[0].Code == "" || resp.Languages[0].Name == "" {
		t.Fatalf("expected code and name, got %+v", resp.Languages[0])
	}
}

func TestGetAll_Defaults(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "GET", "/api/v1/users/user1/preferences", "user1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	resp := decode[PreferencesResponse](t, w)
	if resp.UserID != "user1" {
		t.Fatalf("expected userId user1, got %s", resp.UserID)
	}
	if resp.Preferences[preferences.Theme] != "light" || resp.Preferences[preferences.Language] != "en" {
		t.Fatalf("expected defaults, got %v", resp.Preferences)
	}
	if resp.States[preferences.Theme] != preferences.Defaulted {
		t.Fatalf("expected defaulted theme, got %v", resp.States[preferences.Theme])
	}

	// Defaults are written back on first use.
	stored := env.areas.Area("user1").Snapshot()
	if stored[preferences.ThemeStorageKey] != "light" {
		t.Fatalf("expected default persisted, got %v", stored)
	}
}

func TestGetAll_ClientHints(t *testing.T) {
	env := newTestEnv(t, nil)
	req := httptest.NewRequest("GET", "/api/v1/users/user1/preferences", nil)
	req.Header.Set("Authorization", "Bearer "+makeToken("user1", testSecret, jwt.SigningMethodHS256))
	req.Header.Set("Sec-CH-Prefers-Color-Scheme", `"dark"`)
	req.Header.Set("Accept-Language", "de-CH, en;q=0.5")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	resp := decode[PreferencesResponse](t, w)
	if resp.Preferences[preferences.Theme] != "dark" {
		t.Fatalf("expected hinted theme dark, got %s", resp.Preferences[preferences.Theme])
	}
	if resp.Preferences[preferences.Language] != "de" {
		t.Fatalf("expected hinted language de, got %s", resp.Preferences[preferences.Language])
	}
}

func TestGetAll_ExistingStoredValues(t *testing.T) {
	env := newTestEnv(t, nil)
	env.areas.Area("user1").Put(preferences.ThemeStorageKey, "dark")
	env.areas.Area("user1").Put(preferences.LanguageStorageKey, "fr")

	w := env.do(t, "GET", "/api/v1/users/user1/preferences", "user1", "")
	resp := decode[PreferencesResponse](t, w)
	if resp.Preferences[preferences.Theme] != "dark" || resp.Preferences[preferences.Language] != "fr" {
		t.Fatalf("expected stored values, got %v", resp.Preferences)
	}
	if resp.States[preferences.Language] != preferences.Explicit {
		t.Fatalf("expected explicit language, got %v", resp.States[preferences.Language])
	}
}

func TestGetAll_Forbidden(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "GET", "/api/v1/users/user2/preferences", "user1", "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestGetAll_Unauthenticated(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "GET", "/api/v1/users/user1/preferences", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthorize_MissingClaims(t *testing.T) {
	h := NewPreferencesHandler(failingProfiles{}, testLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/users/{userId}/preferences", h.GetAll)

	req := httptest.NewRequest("GET", "/api/v1/users/user1/preferences", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

type failingProfiles struct{}

func (failingProfiles) Open(context.Context, string, ClientHints) (*Profile, error) {
	return nil, errors.New("backend down")
}

func TestGetAll_ProfileError(t *testing.T) {
	h := NewPreferencesHandler(failingProfiles{}, testLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/users/{userId}/preferences", h.GetAll)

	req := withClaims(httptest.NewRequest("GET", "/api/v1/users/user1/preferences", nil), "user1")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestGetOne(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "GET", "/api/v1/users/user1/preferences/theme", "user1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	resp := decode[SinglePrefResponse](t, w)
	if resp.Key != "theme" || resp.Value != "light" || resp.State != preferences.Defaulted {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestGetOne_UnknownKey(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "GET", "/api/v1/users/user1/preferences/fontSize", "user1", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestSetOne(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "PUT", "/api/v1/users/user1/preferences/language", "user1", `{"value":"ES"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decode[SinglePrefResponse](t, w)
	if resp.Value != "es" || resp.State != preferences.Explicit {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got := env.areas.Area("user1").Snapshot()[preferences.LanguageStorageKey]; got != "es" {
		t.Fatalf("expected es persisted, got %q", got)
	}
}

func TestSetOne_InvalidValue(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "PUT", "/api/v1/users/user1/preferences/theme", "user1", `{"value":"sepia"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}

	w = env.do(t, "GET", "/api/v1/users/user1/preferences/theme", "user1", "")
	if resp := decode[SinglePrefResponse](t, w); resp.Value != "light" {
		t.Fatalf("expected theme unchanged, got %s", resp.Value)
	}
}

func TestSetOne_InvalidJSON(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "PUT", "/api/v1/users/user1/preferences/theme", "user1", `not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSetOne_UnknownKey(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "PUT", "/api/v1/users/user1/preferences/fontSize", "user1", `{"value":"12"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestPatchPrefs(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "PATCH", "/api/v1/users/user1/preferences", "user1", `{"theme":"dark","language":"ja"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decode[PreferencesResponse](t, w)
	if resp.Preferences[preferences.Theme] != "dark" || resp.Preferences[preferences.Language] != "ja" {
		t.Fatalf("expected patched values, got %v", resp.Preferences)
	}
}

func TestPatchPrefs_RejectsWholeBatch(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "PATCH", "/api/v1/users/user1/preferences", "user1", `{"theme":"dark","language":"klingon"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}

	resp := decode[RejectedResponse](t, w)
	if resp.Rejected["language"] != "klingon" || len(resp.Rejected) != 1 {
		t.Fatalf("unexpected rejected set %v", resp.Rejected)
	}

	w = env.do(t, "GET", "/api/v1/users/user1/preferences/theme", "user1", "")
	if got := decode[SinglePrefResponse](t, w); got.Value != "light" {
		t.Fatalf("expected theme untouched, got %s", got.Value)
	}
}

func TestPatchPrefs_UnknownKey(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "PATCH", "/api/v1/users/user1/preferences", "user1", `{"theme":"dark","fontSize":"12"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w = env.do(t, "GET", "/api/v1/users/user1/preferences/theme", "user1", "")
	if got := decode[SinglePrefResponse](t, w); got.Value != "light" {
		t.Fatalf("expected theme untouched, got %s", got.Value)
	}
}

func TestPatchPrefs_Empty(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "PATCH", "/api/v1/users/user1/preferences", "user1", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestToggleTheme(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, want := range []string{"dark", "light"} {
		w := env.do(t, "POST", "/api/v1/users/user1/preferences/theme/toggle", "user1", "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if resp := decode[SinglePrefResponse](t, w); resp.Value != want || resp.State != preferences.Explicit {
			t.Fatalf("expected explicit %s, got %+v", want, resp)
		}
	}
}

func TestReset(t *testing.T) {
	for _, method := range []string{"POST", "DELETE"} {
		t.Run(method, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.do(t, "PATCH", "/api/v1/users/user1/preferences", "user1", `{"theme":"dark","language":"it"}`)

			path := "/api/v1/users/user1/preferences"
			if method == "POST" {
				path += "/reset"
			}
			w := env.do(t, method, path, "user1", "")
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w.Code)
			}

			resp := decode[PreferencesResponse](t, w)
			if resp.Preferences[preferences.Theme] != "light" || resp.Preferences[preferences.Language] != "en" {
				t.Fatalf("expected defaults after reset, got %v", resp.Preferences)
			}
			for k, s := range resp.States {
				if s != preferences.Defaulted {
					t.Fatalf("expected %s defaulted, got %v", k, s)
				}
			}
		})
	}
}

func TestReset_FollowsClientTheme(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, "PUT", "/api/v1/users/user1/preferences/theme", "user1", `{"value":"dark"}`)
	env.do(t, "POST", "/api/v1/users/user1/preferences/reset", "user1", "")

	req := httptest.NewRequest("GET", "/api/v1/users/user1/preferences/theme", nil)
	req.Header.Set("Authorization", "Bearer "+makeToken("user1", testSecret, jwt.SigningMethodHS256))
	req.Header.Set("Sec-CH-Prefers-Color-Scheme", "dark")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if resp := decode[SinglePrefResponse](t, w); resp.Value != "dark" || resp.State != preferences.Defaulted {
		t.Fatalf("expected defaulted theme to follow client, got %+v", resp)
	}
}

func TestMessages(t *testing.T) {
	bundle := i18n.NewBundle(fstest.MapFS{
		"en.yaml": {Data: []byte("nav:\n  home: Home\n")},
		"fr.yaml": {Data: []byte("nav:\n  home: Accueil\n")},
	}, testLogger())
	env := newTestEnv(t, bundle)

	w := env.do(t, "GET", "/api/v1/users/user1/messages?key=nav.home&key=nav.missing", "user1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[MessagesResponse](t, w)
	if resp.Language != "en" || resp.Messages["nav.home"] != "Home" || resp.Messages["nav.missing"] != "nav.missing" {
		t.Fatalf("unexpected messages %+v", resp)
	}

	env.do(t, "PUT", "/api/v1/users/user1/preferences/language", "user1", `{"value":"fr"}`)
	w = env.do(t, "GET", "/api/v1/users/user1/messages?key=nav.home", "user1", "")
	resp = decode[MessagesResponse](t, w)
	if resp.Language != "fr" || resp.Messages["nav.home"] != "Accueil" {
		t.Fatalf("expected french messages, got %+v", resp)
	}
}

func TestMessages_NotConfigured(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "GET", "/api/v1/users/user1/messages?key=nav.home", "user1", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestMessages_MissingKey(t *testing.T) {
	bundle := i18n.NewBundle(fstest.MapFS{"en.yaml": {Data: []byte("a: b\n")}}, testLogger())
	env := newTestEnv(t, bundle)
	w := env.do(t, "GET", "/api/v1/users/user1/messages", "user1", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

type sseEvent struct {
	name string
	data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading event stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return ev
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestEvents(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/v1/users/user1/events", nil)
	req.Header.Set("Authorization", "Bearer "+makeToken("user1", testSecret, jwt.SigningMethodHS256))
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("opening stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream, got %s", ct)
	}

	r := bufio.NewReader(resp.Body)
	if ev := readEvent(t, r); ev.name != "snapshot" || !strings.Contains(ev.data, `"theme":"light"`) {
		t.Fatalf("expected snapshot first, got %+v", ev)
	}

	// The subscription is registered before the snapshot is written.
	w := env.do(t, "POST", "/api/v1/users/user1/preferences/theme/toggle", "user1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("toggle: expected 200, got %d", w.Code)
	}

	ev := readEvent(t, r)
	if ev.name != "preference" {
		t.Fatalf("expected preference event, got %+v", ev)
	}
	var got preferences.Event
	if err := json.Unmarshal([]byte(ev.data), &got); err != nil {
		t.Fatalf("decoding event: %v", err)
	}
	if got.Topic != preferences.Theme || got.Value != "dark" || got.Source != preferences.SourceSet {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestEvents_ExternalChange(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/v1/users/user1/events", nil)
	req.Header.Set("Authorization", "Bearer "+makeToken("user1", testSecret, jwt.SigningMethodHS256))
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("opening stream: %v", err)
	}
	defer resp.Body.Close()

	r := bufio.NewReader(resp.Body)
	readEvent(t, r)

	env.areas.Area("user1").Put(preferences.LanguageStorageKey, "pt")

	var got preferences.Event
	if err := json.Unmarshal([]byte(readEvent(t, r).data), &got); err != nil {
		t.Fatalf("decoding event: %v", err)
	}
	if got.Topic != preferences.Language || got.Value != "pt" || got.Source != preferences.SourceExternal {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestProfileResponses_RequestColorSchemeHint(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "GET", "/api/v1/users/user1/preferences", "user1", "")
	if got := w.Header().Get("Accept-CH"); got != colorSchemeHint {
		t.Fatalf("expected Accept-CH %s, got %q", colorSchemeHint, got)
	}
}
