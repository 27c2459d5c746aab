package session

import "errors"

// Sentinel error kinds for this package.
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUnknownTheme   = errors.New("unknown theme")
)
