package service

import "errors"

// Sentinel error kinds returned by the service.
var (
	ErrNotStarted      = errors.New("service not started")
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many sessions")
	ErrInvalidCommand  = errors.New("invalid command")
	ErrInvalidLimit    = errors.New("invalid limit")
	ErrInvalidClient   = errors.New("invalid client id")
)
