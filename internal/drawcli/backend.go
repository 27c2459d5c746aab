package drawcli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/whattoeat/internal/domain/catalog"
	"github.com/okian/whattoeat/internal/domain/types"
)

// stopGrace is how long a spin may sit on its last tick before the CLI
// stops it. Servers with auto-stop settle well within it.
const stopGrace = 500 * time.Millisecond

// ErrSpinAborted is returned when a session stream ends before a result.
var ErrSpinAborted = errors.New("spin ended without a result")

// Backend is where draws come from: a remote server or an in-process service.
type Backend interface {
	Vendors(ctx context.Context) ([]catalog.Vendor, error)
	Draw(ctx context.Context) (types.Draw, error)
	Spin(ctx context.Context, onTick func(types.Tick)) (types.Draw, error)
	Close() error
}

// follow drives a subscribed session from its first state event to a
// result. start is called once the idle state is seen; stop is called when
// the last tick goes unanswered for stopGrace.
func follow(ctx context.Context, events <-chan types.SessionEvent,
	start, stop func(context.Context) error, onTick func(types.Tick)) (types.Draw, error) {
	var (
		started bool
		grace   <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return types.Draw{}, ctx.Err()
		case <-grace:
			grace = nil
			if err := stop(ctx); err != nil {
				return types.Draw{}, fmt.Errorf("stop: %w", err)
			}
		case ev, ok := <-events:
			if !ok {
				return types.Draw{}, ErrSpinAborted
			}
			switch ev.Type {
			case types.EventTick:
				if ev.Tick == nil {
					continue
				}
				if onTick != nil {
					onTick(*ev.Tick)
				}
				if ev.Tick.Step >= ev.Tick.Steps {
					grace = time.After(stopGrace)
				}
			case types.EventState:
				if ev.Session == nil {
					continue
				}
				if ev.Session.Result != nil && started {
					return *ev.Session.Result, nil
				}
				if !started {
					started = true
					if err := start(ctx); err != nil {
						return types.Draw{}, fmt.Errorf("start: %w", err)
					}
				}
			}
		}
	}
}
