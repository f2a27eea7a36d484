package preferences

import (
	"fmt"
	"time"
)

// Source says what caused a change notification.
type Source string

const (
	SourceSet      Source = "set"
	SourceReset    Source = "reset"
	SourceSystem   Source = "system"
	SourceExternal Source = "external"
)

// Event is the metadata delivered with every change notification.
type Event struct {
	Topic     Key       `json:"topic"`
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Source    Source    `json:"source"`
}

// Handler receives the new value and its metadata. Handlers on All receive
// the changed key's value too.
type Handler func(value string, ev Event)

// State tracks where a key's current value came from.
type State int

const (
	Uninitialized State = iota
	// Defaulted values came from the system/locale fallback and keep
	// following system theme changes.
	Defaulted
	// Explicit values came from a user Set or a stored entry.
	Explicit
)

func (s State) String() string {
	switch s {
	case Defaulted:
		return "defaulted"
	case Explicit:
		return "explicit"
	default:
		return "uninitialized"
	}
}

// MarshalText lets states appear by name in JSON maps and logs.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "defaulted":
		*s = Defaulted
	case "explicit":
		*s = Explicit
	case "uninitialized":
		*s = Uninitialized
	default:
		return fmt.Errorf("unknown preference state %q", text)
	}
	return nil
}
