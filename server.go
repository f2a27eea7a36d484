package main

import (
	"log/slog"
	"net/http"
)

// NewRouter registers all routes and wraps them with the middleware chain.
func NewRouter(h *PreferencesHandler, cfg Config, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	auth := JWTAuth(cfg.JWTSecret, cfg.JWTIssuer, cfg.DevBypassAuth)

	// Public
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /api/v1/languages", h.Languages)

	// Preferences
	mux.HandleFunc("GET /api/v1/users/{userId}/preferences", auth(h.GetAll))
	mux.HandleFunc("GET /api/v1/users/{userId}/preferences/{key}", auth(h.GetOne))
	mux.HandleFunc("PUT /api/v1/users/{userId}/preferences/{key}", auth(h.SetOne))
	mux.HandleFunc("PATCH /api/v1/users/{userId}/preferences", auth(h.PatchPrefs))
	mux.HandleFunc("POST /api/v1/users/{userId}/preferences/theme/toggle", auth(h.ToggleTheme))
	mux.HandleFunc("POST /api/v1/users/{userId}/preferences/reset", auth(h.Reset))
	mux.HandleFunc("DELETE /api/v1/users/{userId}/preferences", auth(h.Reset))

	// Change stream and translations
	mux.HandleFunc("GET /api/v1/users/{userId}/events", auth(h.Events))
	mux.HandleFunc("GET /api/v1/users/{userId}/messages", auth(h.Messages))

	// Middleware chain: Recovery → CORS → RequestLogging → mux (auth is per route)
	var handler http.Handler = mux
	handler = RequestLogging(logger)(handler)
	handler = CORS(cfg.CORSAllowOrigin)(handler)
	handler = Recovery(logger)(handler)

	return handler
}
