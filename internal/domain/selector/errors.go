package selector

import "errors"

// ErrInvalidInput marks a draw from an empty catalog.
var ErrInvalidInput = errors.New("invalid input")
