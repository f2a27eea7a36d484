package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/wozniakbe/ecolife-prefs/preferences"
)

// APIError represents a structured error response.
type APIError struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// writeJSON writes v as the response body. Preference responses are per user
// and must not be cached by intermediaries.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIError{Error: msg, Code: status})
}

func writeUnknownKey(w http.ResponseWriter, key preferences.Key) {
	writeError(w, http.StatusNotFound, fmt.Sprintf("unknown preference %q", key))
}
