// Package session models the draw cycle a user walks through:
// idle -> spinning -> showing -> idle.
//
// Every transition is a total function of the current status and the
// command; commands that do not apply are no-ops.
package session

import (
	"fmt"
	"strings"

	"github.com/okian/whattoeat/internal/domain/selector"
)

// Status is the current phase of a session.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusSpinning Status = "spinning"
	StatusShowing  Status = "showing"
)

// Command is a user action.
type Command string

const (
	CommandStart Command = "start"
	CommandStop  Command = "stop"
	CommandReset Command = "reset"
)

// ParseCommand accepts start, stop and reset in any case.
func ParseCommand(s string) (Command, error) {
	switch c := Command(strings.ToLower(strings.TrimSpace(s))); c {
	case CommandStart, CommandStop, CommandReset:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
	}
}

// State is a snapshot of a session. Result is set only while showing.
type State struct {
	Status Status           `json:"status"`
	Result *selector.Result `json:"result,omitempty"`
}

// Machine holds the state of one session. It is not safe for concurrent
// use; owners serialize access.
type Machine struct {
	status Status
	result *selector.Result
}

// NewMachine returns a machine in the idle status.
func NewMachine() *Machine {
	return &Machine{status: StatusIdle}
}

// Status returns the current status.
func (m *Machine) Status() Status { return m.status }

// State returns a copy of the current state.
func (m *Machine) State() State {
	s := State{Status: m.status}
	if m.result != nil {
		r := *m.result
		s.Result = &r
	}
	return s
}

// Start moves idle or showing to spinning and clears any shown result.
func (m *Machine) Start() bool {
	switch m.status {
	case StatusIdle, StatusShowing:
		m.status = StatusSpinning
		m.result = nil
		return true
	default:
		return false
	}
}

// Stop settles a spin on r.
func (m *Machine) Stop(r selector.Result) bool {
	if m.status != StatusSpinning {
		return false
	}
	m.status = StatusShowing
	m.result = &r
	return true
}

// Reset returns a shown result to idle.
func (m *Machine) Reset() bool {
	if m.status != StatusShowing {
		return false
	}
	m.status = StatusIdle
	m.result = nil
	return true
}

// Apply dispatches cmd. The result is only consulted for CommandStop.
// It reports whether the status changed.
func (m *Machine) Apply(cmd Command, r selector.Result) bool {
	switch cmd {
	case CommandStart:
		return m.Start()
	case CommandStop:
		return m.Stop(r)
	case CommandReset:
		return m.Reset()
	default:
		return false
	}
}

// Accepts reports whether cmd would change the status.
func (m *Machine) Accepts(cmd Command) bool {
	switch cmd {
	case CommandStart:
		return m.status == StatusIdle || m.status == StatusShowing
	case CommandStop:
		return m.status == StatusSpinning
	case CommandReset:
		return m.status == StatusShowing
	default:
		return false
	}
}
