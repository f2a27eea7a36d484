package main

import "github.com/wozniakbe/ecolife-prefs/preferences"

// PreferencesResponse is returned for full preference lookups.
type PreferencesResponse struct {
	UserID      string                                `json:"userId"`
	Preferences map[preferences.Key]string            `json:"preferences"`
	States      map[preferences.Key]preferences.State `json:"states"`
}

// SinglePrefResponse is returned for single-key lookups and writes.
type SinglePrefResponse struct {
	Key   string            `json:"key"`
	Value string            `json:"value"`
	State preferences.State `json:"state"`
}

// SetPrefRequest is the body of a single-key write.
type SetPrefRequest struct {
	Value string `json:"value"`
}

// RejectedResponse lists keys whose values failed validation.
type RejectedResponse struct {
	APIError
	Rejected map[string]string `json:"rejected"`
}

// LanguagesResponse lists the supported languages.
type LanguagesResponse struct {
	Languages []preferences.LanguageInfo `json:"languages"`
}

// MessagesResponse carries translated messages in the user's language.
type MessagesResponse struct {
	Language string            `json:"language"`
	Messages map[string]string `json:"messages"`
}
