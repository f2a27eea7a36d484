package preferences

import "errors"

// ErrUnknownKey is returned by Get for keys outside the known set.
var ErrUnknownKey = errors.New("unknown preference key")
