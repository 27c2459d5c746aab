// Package types contains the JSON shapes shared by the service and its adapters.
package types

import "time"

// Draw is a draw as returned by the API and read back from history.
type Draw struct {
	ID        string    `json:"id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Source    string    `json:"source,omitempty"`
	Group     string    `json:"group"`
	Vendor    string    `json:"vendor"`
	Dish      string    `json:"dish"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a session snapshot.
type Session struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Result    *Draw     `json:"result,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VendorCount is the number of persisted draws that landed on a vendor.
type VendorCount struct {
	Group  string `json:"group"`
	Vendor string `json:"vendor"`
	Count  int    `json:"count"`
}

// Tick is one cosmetic pick shown while a session spins. Ticks are never stored.
type Tick struct {
	Step   int    `json:"step"`
	Steps  int    `json:"steps"`
	Group  string `json:"group"`
	Vendor string `json:"vendor"`
	Dish   string `json:"dish"`
	Label  string `json:"label"`
}

// Session event types.
const (
	EventState = "state"
	EventTick  = "tick"
)

// SessionEvent is pushed to session subscribers.
type SessionEvent struct {
	Type    string   `json:"type"`
	Session *Session `json:"session,omitempty"`
	Tick    *Tick    `json:"tick,omitempty"`
}
