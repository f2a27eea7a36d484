package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/wozniakbe/ecolife-prefs/preferences"
)

// colorSchemeHint is the client hint carrying the system color scheme.
const colorSchemeHint = "Sec-CH-Prefers-Color-Scheme"

// eventBuffer bounds how many undelivered events a slow stream may hold.
const eventBuffer = 16

// PreferencesHandler holds dependencies for preference handlers.
type PreferencesHandler struct {
	profiles Profiles
	logger   *slog.Logger
}

// NewPreferencesHandler creates a new handler with the given profiles and logger.
func NewPreferencesHandler(profiles Profiles, logger *slog.Logger) *PreferencesHandler {
	return &PreferencesHandler{profiles: profiles, logger: logger}
}

// authorize checks that the JWT subject matches the requested userId.
func (h *PreferencesHandler) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.PathValue("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing userId")
		return "", false
	}

	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing claims")
		return "", false
	}

	if claims.Subject != userID {
		writeError(w, http.StatusForbidden, "access denied")
		return "", false
	}

	return userID, true
}

// profile authorizes the request and opens the caller's preference store.
func (h *PreferencesHandler) profile(w http.ResponseWriter, r *http.Request) (*Profile, bool) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return nil, false
	}

	// Ask browsers to send the color scheme hint on later requests.
	w.Header().Set("Accept-CH", colorSchemeHint)
	w.Header().Add("Vary", colorSchemeHint+", Accept-Language")

	p, err := h.profiles.Open(r.Context(), userID, clientHints(r))
	if err != nil {
		h.logger.Error("opening profile failed", "error", err, "userId", userID)
		writeError(w, http.StatusInternalServerError, "failed to load preferences")
		return nil, false
	}
	return p, true
}

// clientHints reads the client's color scheme and language preferences.
func clientHints(r *http.Request) ClientHints {
	var hints ClientHints

	scheme := strings.Trim(r.Header.Get(colorSchemeHint), `" `)
	if preferences.Valid(preferences.Theme, scheme) {
		hints.Theme = scheme
	}

	if accept := r.Header.Get("Accept-Language"); accept != "" {
		tags, _, err := language.ParseAcceptLanguage(accept)
		if err == nil {
			locales := make([]string, len(tags))
			for i, tag := range tags {
				locales[i] = tag.String()
			}
			if code, ok := preferences.MatchLanguage(locales...); ok {
				hints.Locale = code
			}
		}
	}

	return hints
}

func preferencesResponse(userID string, s *preferences.Store) PreferencesResponse {
	return PreferencesResponse{
		UserID:      userID,
		Preferences: s.GetAll(),
		States:      s.States(),
	}
}

// Languages lists the supported languages.
func (h *PreferencesHandler) Languages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LanguagesResponse{Languages: preferences.AvailableLanguages()})
}

// GetAll returns all preferences for a user.
func (h *PreferencesHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	p, ok := h.profile(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, preferencesResponse(r.PathValue("userId"), p.Store))
}

// GetOne returns a single preference by key.
func (h *PreferencesHandler) GetOne(w http.ResponseWriter, r *http.Request) {
	p, ok := h.profile(w, r)
	if !ok {
		return
	}

	key := preferences.Key(r.PathValue("key"))
	value, err := p.Store.Get(key)
	if err != nil {
		writeUnknownKey(w, key)
		return
	}

	writeJSON(w, http.StatusOK, SinglePrefResponse{Key: string(key), Value: value, State: p.Store.State(key)})
}

// SetOne sets a single preference.
func (h *PreferencesHandler) SetOne(w http.ResponseWriter, r *http.Request) {
	p, ok := h.profile(w, r)
	if !ok {
		return
	}

	key := preferences.Key(r.PathValue("key"))
	if _, err := p.Store.Get(key); err != nil {
		writeUnknownKey(w, key)
		return
	}

	var req SetPrefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if !p.Store.Set(r.Context(), key, req.Value) {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid value for %s", key))
		return
	}

	value, _ := p.Store.Get(key)
	writeJSON(w, http.StatusOK, SinglePrefResponse{Key: string(key), Value: value, State: p.Store.State(key)})
}

// PatchPrefs sets several preferences. Nothing is applied unless every key
// is known and every value valid.
func (h *PreferencesHandler) PatchPrefs(w http.ResponseWriter, r *http.Request) {
	p, ok := h.profile(w, r)
	if !ok {
		return
	}

	var prefs map[string]string
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if len(prefs) == 0 {
		writeError(w, http.StatusBadRequest, "empty preferences")
		return
	}

	for k := range prefs {
		if _, known := preferences.StorageKey(preferences.Key(k)); !known {
			writeUnknownKey(w, preferences.Key(k))
			return
		}
	}

	rejected := make(map[string]string)
	for k, v := range prefs {
		if !preferences.Valid(preferences.Key(k), v) {
			rejected[k] = v
		}
	}
	if len(rejected) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, RejectedResponse{
			APIError: APIError{Error: "invalid preferences", Code: http.StatusUnprocessableEntity},
			Rejected: rejected,
		})
		return
	}

	for _, k := range preferences.Keys() {
		if v, ok := prefs[string(k)]; ok {
			p.Store.Set(r.Context(), k, v)
		}
	}

	writeJSON(w, http.StatusOK, preferencesResponse(r.PathValue("userId"), p.Store))
}

// ToggleTheme flips the theme between light and dark.
func (h *PreferencesHandler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	p, ok := h.profile(w, r)
	if !ok {
		return
	}

	theme := p.Store.ToggleTheme(r.Context())
	writeJSON(w, http.StatusOK, SinglePrefResponse{
		Key:   string(preferences.Theme),
		Value: theme,
		State: p.Store.State(preferences.Theme),
	})
}

// Reset discards explicit choices and restores system defaults.
func (h *PreferencesHandler) Reset(w http.ResponseWriter, r *http.Request) {
	p, ok := h.profile(w, r)
	if !ok {
		return
	}

	p.Store.Reset(r.Context())
	writeJSON(w, http.StatusOK, preferencesResponse(r.PathValue("userId"), p.Store))
}

// Messages translates the requested keys into the user's language.
func (h *PreferencesHandler) Messages(w http.ResponseWriter, r *http.Request) {
	p, ok := h.profile(w, r)
	if !ok {
		return
	}

	if p.Localizer == nil {
		writeError(w, http.StatusServiceUnavailable, "translations not configured")
		return
	}

	keys := r.URL.Query()["key"]
	if len(keys) == 0 {
		writeError(w, http.StatusBadRequest, "missing key")
		return
	}

	messages := make(map[string]string, len(keys))
	for _, k := range keys {
		messages[k] = p.Localizer.T(k)
	}
	writeJSON(w, http.StatusOK, MessagesResponse{Language: p.Localizer.Language(), Messages: messages})
}

// Events streams preference changes as server-sent events until the client
// disconnects. The first event is a snapshot of the current values.
func (h *PreferencesHandler) Events(w http.ResponseWriter, r *http.Request) {
	p, ok := h.profile(w, r)
	if !ok {
		return
	}
	userID := r.PathValue("userId")

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("cannot clear write deadline for event stream", "error", err)
	}

	events := make(chan preferences.Event, eventBuffer)
	unsubscribe := p.Store.Subscribe(preferences.All, func(_ string, ev preferences.Event) {
		select {
		case events <- ev:
		default:
			h.logger.Warn("event stream full, dropping event", "userId", userID, "topic", ev.Topic)
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeSSE(w, "snapshot", p.Store.GetAll()); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.logger.Error("event stream not flushable", "error", err)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			if err := writeSSE(w, "preference", ev); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
