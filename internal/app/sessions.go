package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/whattoeat/internal/domain/model"
	"github.com/okian/whattoeat/internal/domain/selector"
	"github.com/okian/whattoeat/internal/domain/session"
	"github.com/okian/whattoeat/internal/domain/types"
	"github.com/okian/whattoeat/pkg/logger"
	"github.com/okian/whattoeat/pkg/metrics"
)

const subscriberBuffer = 64

// entry is one registered session. mu guards every field.
type entry struct {
	mu         sync.Mutex
	id         string
	machine    *session.Machine
	result     *types.Draw
	updatedAt  time.Time
	spinGen    uint64
	spinCancel context.CancelFunc
	subs       map[chan types.SessionEvent]struct{}
	closed     bool
}

func (e *entry) snapshot() types.Session {
	out := types.Session{
		ID:        e.id,
		Status:    string(e.machine.Status()),
		UpdatedAt: e.updatedAt,
	}
	if e.result != nil {
		d := *e.result
		out.Result = &d
	}
	return out
}

// publish never blocks; slow subscribers miss events.
func (e *entry) publish(ev types.SessionEvent) {
	for ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (e *entry) publishState() {
	snap := e.snapshot()
	e.publish(types.SessionEvent{Type: types.EventState, Session: &snap})
}

func (e *entry) stopSpinner() {
	if e.spinCancel != nil {
		e.spinCancel()
		e.spinCancel = nil
	}
	e.spinGen++
}

// spinnerDone releases the spinner of generation gen once its schedule has
// run out. It reports false when a newer command already replaced it.
// Caller holds e.mu.
func (e *entry) spinnerDone(gen uint64) bool {
	if e.spinGen != gen {
		return false
	}
	if e.spinCancel != nil {
		e.spinCancel()
		e.spinCancel = nil
	}
	return true
}

// close cancels the spinner and ends every subscription.
func (e *entry) close() {
	e.stopSpinner()
	for ch := range e.subs {
		delete(e.subs, ch)
		close(ch)
		metrics.AddStreamSubscribers(-1)
	}
	e.closed = true
}

// CreateSession registers a new idle session.
func (s *Service) CreateSession(ctx context.Context) (types.Session, error) {
	if !s.isStarted() {
		return types.Session{}, ErrNotStarted
	}
	e := &entry{
		id:        uuid.NewString(),
		machine:   session.NewMachine(),
		updatedAt: s.now().UTC(),
		subs:      make(map[chan types.SessionEvent]struct{}),
	}

	s.sessMu.Lock()
	if len(s.sessions) >= s.maxSessions {
		s.sessMu.Unlock()
		return types.Session{}, fmt.Errorf("%w: limit %d", ErrTooManySessions, s.maxSessions)
	}
	s.sessions[e.id] = e
	active := len(s.sessions)
	s.sessMu.Unlock()

	metrics.UpdateSessionsActive(active)
	s.logger.Debug(ctx, "session created", logger.String("session_id", e.id))

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(), nil
}

func (s *Service) lookup(id string) (*entry, error) {
	s.sessMu.RLock()
	e, ok := s.sessions[id]
	s.sessMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e, nil
}

// Session returns a snapshot of a session.
func (s *Service) Session(_ context.Context, id string) (types.Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return types.Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(), nil
}

// Command applies cmd to a session and reports whether its status changed.
// A non-empty requestID that was already applied returns the current
// snapshot without applying cmd again.
func (s *Service) Command(ctx context.Context, id string, cmd session.Command, requestID string) (types.Session, bool, error) {
	if !s.isStarted() {
		return types.Session{}, false, ErrNotStarted
	}
	if _, err := session.ParseCommand(string(cmd)); err != nil {
		metrics.RecordSessionCommand("invalid", "rejected")
		return types.Session{}, false, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	e, err := s.lookup(id)
	if err != nil {
		return types.Session{}, false, err
	}

	var key string
	if requestID != "" {
		key = id + "/" + requestID
		if s.deduper.SeenAndRecord(ctx, key) {
			metrics.RecordSessionCommand(string(cmd), "duplicate")
			e.mu.Lock()
			defer e.mu.Unlock()
			return e.snapshot(), false, nil
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		if key != "" {
			s.deduper.Unrecord(ctx, key)
		}
		return types.Session{}, false, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	var changed bool
	switch cmd {
	case session.CommandStart:
		if changed = e.machine.Start(); changed {
			e.result = nil
			s.startSpinner(e)
		}
	case session.CommandStop:
		if e.machine.Accepts(session.CommandStop) {
			r, err := s.selector.Pick(s.catalog)
			if err != nil {
				metrics.RecordDrawError()
				if key != "" {
					s.deduper.Unrecord(ctx, key)
				}
				return e.snapshot(), false, fmt.Errorf("stop: %w", err)
			}
			e.stopSpinner()
			changed = s.finish(ctx, e, r)
		}
	case session.CommandReset:
		if changed = e.machine.Reset(); changed {
			e.result = nil
		}
	}

	outcome := "ignored"
	if changed {
		outcome = "applied"
		e.updatedAt = s.now().UTC()
		e.publishState()
	}
	metrics.RecordSessionCommand(string(cmd), outcome)
	s.logger.Debug(ctx, "session command",
		logger.String("session_id", id),
		logger.String("command", string(cmd)),
		logger.String("status", string(e.machine.Status())),
		logger.Bool("changed", changed),
	)
	return e.snapshot(), changed, nil
}

// finish settles a spinning session on r. Caller holds e.mu.
func (s *Service) finish(ctx context.Context, e *entry, r selector.Result) bool {
	if !e.machine.Stop(r) {
		return false
	}
	d := s.settle(ctx, e.id, model.SourceSession, r)
	e.result = &d
	return true
}

// startSpinner launches the cosmetic churn for e. Caller holds e.mu.
func (s *Service) startSpinner(e *entry) {
	e.stopSpinner()
	ctx, cancel := context.WithCancel(s.runCtx)
	e.spinCancel = cancel
	go s.spin(ctx, e, e.spinGen)
}

// spin draws on the decelerating schedule and publishes each pick as a tick.
// With auto-stop the last pick becomes the session's result.
func (s *Service) spin(ctx context.Context, e *entry, gen uint64) {
	start := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	var (
		last   selector.Result
		picked bool
	)
	steps := len(s.schedule)
	for i, pause := range s.schedule {
		if pause > 0 {
			timer.Reset(pause)
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return
		}

		r, err := s.selector.Pick(s.catalog)
		if err != nil {
			metrics.RecordDrawError()
			s.logger.Error(ctx, "spin pick failed", logger.String("session_id", e.id), logger.Error(err))
			e.mu.Lock()
			e.spinnerDone(gen)
			e.mu.Unlock()
			return
		}
		last, picked = r, true
		metrics.RecordSpinTick()

		e.mu.Lock()
		if e.spinGen != gen {
			e.mu.Unlock()
			return
		}
		e.publish(types.SessionEvent{Type: types.EventTick, Tick: &types.Tick{
			Step:   i + 1,
			Steps:  steps,
			Group:  r.Group,
			Vendor: r.Vendor,
			Dish:   r.Dish,
			Label:  selector.Label(r),
		}})
		e.mu.Unlock()
	}
	metrics.RecordSpinDuration(time.Since(start))

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.spinGen != gen {
		return
	}
	if s.autoStop && picked && s.finish(ctx, e, last) {
		e.updatedAt = s.now().UTC()
		e.publishState()
		metrics.RecordSessionCommand(string(session.CommandStop), "auto")
	}
	e.spinnerDone(gen)
}

// Subscribe streams a session's ticks and state changes. The first event is
// the current state. The channel closes when ctx ends, the returned cancel
// func runs, or the session goes away.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan types.SessionEvent, func(), error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan types.SessionEvent, subscriberBuffer)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	snap := e.snapshot()
	ch <- types.SessionEvent{Type: types.EventState, Session: &snap}
	e.subs[ch] = struct{}{}
	e.mu.Unlock()
	metrics.AddStreamSubscribers(1)

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			e.mu.Lock()
			defer e.mu.Unlock()
			if _, ok := e.subs[ch]; ok {
				delete(e.subs, ch)
				close(ch)
				metrics.AddStreamSubscribers(-1)
			}
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return ch, cancel, nil
}

// DeleteSession removes a session, ending its spinner and subscriptions.
func (s *Service) DeleteSession(_ context.Context, id string) error {
	s.sessMu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	active := len(s.sessions)
	s.sessMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.mu.Lock()
	e.close()
	e.mu.Unlock()
	metrics.UpdateSessionsActive(active)
	return nil
}

// sweep evicts sessions untouched for longer than the TTL.
func (s *Service) sweep(ctx context.Context) {
	defer s.janitor.Done()
	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.evictExpired(); n > 0 {
				s.logger.Info(ctx, "evicted idle sessions", logger.Int("count", n))
			}
		}
	}
}

func (s *Service) evictExpired() int {
	cutoff := s.now().UTC().Add(-s.sessionTTL)

	s.sessMu.Lock()
	var expired []*entry
	for id, e := range s.sessions {
		// only a live spinner pins a session; a spin left waiting for stop expires
		e.mu.Lock()
		stale := e.updatedAt.Before(cutoff) && e.spinCancel == nil
		e.mu.Unlock()
		if stale {
			delete(s.sessions, id)
			expired = append(expired, e)
		}
	}
	active := len(s.sessions)
	s.sessMu.Unlock()

	for _, e := range expired {
		e.mu.Lock()
		e.close()
		e.mu.Unlock()
		metrics.RecordSessionEvicted()
	}
	metrics.UpdateSessionsActive(active)
	return len(expired)
}

// closeSessions drops every session. Used on shutdown.
func (s *Service) closeSessions() {
	s.sessMu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*entry)
	s.sessMu.Unlock()

	for _, e := range all {
		e.mu.Lock()
		e.close()
		e.mu.Unlock()
	}
	metrics.UpdateSessionsActive(0)
}
