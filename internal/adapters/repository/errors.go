package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrOpen         = errors.New("open store failed")
	ErrInvalidLimit = errors.New("invalid history limit")
	ErrInvalidInput = errors.New("invalid repository input")
	ErrClosed       = errors.New("store closed")
)
