// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/whattoeat/internal/domain/selector"
)

// Draw sources.
const (
	SourceAPI      = "api"
	SourceSession  = "session"
	SourceTelegram = "telegram"
)

// DrawEvent is a settled draw on its way to the history store.
// Cosmetic spin ticks never become events.
type DrawEvent struct {
	ID        string // uuid
	SessionID string // empty for one-off draws
	Source    string // api, session, telegram
	Result    selector.Result
	At        time.Time
}
