package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/wozniakbe/ecolife-prefs/preferences"
)

// Adaptive colors pick their light or dark variant from the background that
// the terminal host last applied.
var (
	keyStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#81C784"})
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1B1B1B", Dark: "#F5F5F5"})
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9E9E9E"})
	currentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#1565C0", Dark: "#64B5F6"})
)

func printPair(w io.Writer, key preferences.Key, value string, state preferences.State) {
	fmt.Fprintf(w, "%s = %s %s\n",
		keyStyle.Render(string(key)),
		valueStyle.Render(value),
		mutedStyle.Render("("+state.String()+")"),
	)
}

func printPreferences(w io.Writer, s *preferences.Store) {
	values := s.GetAll()
	for _, k := range preferences.Keys() {
		printPair(w, k, values[k], s.State(k))
	}
}

func printLanguages(w io.Writer, langs []preferences.LanguageInfo, current string) {
	for _, l := range langs {
		marker, code := " ", fmt.Sprintf("%-5s", l.Code)
		if l.Code == current {
			marker, code = "*", currentStyle.Render(code)
		}
		fmt.Fprintf(w, "%s %s %s\n", marker, code, mutedStyle.Render(l.Name))
	}
}

func printEvent(w io.Writer, ev preferences.Event) {
	fmt.Fprintf(w, "%s %s = %s %s\n",
		mutedStyle.Render(ev.Timestamp.Format("15:04:05")),
		keyStyle.Render(string(ev.Topic)),
		valueStyle.Render(ev.Value),
		mutedStyle.Render("("+string(ev.Source)+")"),
	)
}
