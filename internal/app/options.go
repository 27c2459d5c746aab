package service

import (
	"time"

	"github.com/okian/whattoeat/internal/adapters/repository"
	"github.com/okian/whattoeat/internal/domain/catalog"
	"github.com/okian/whattoeat/internal/domain/selector"
	"github.com/okian/whattoeat/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithCatalog sets the menu to draw from.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithSelector sets the selector used for every draw and spin tick.
func WithSelector(sel *selector.Selector) Option {
	return func(s *Service) {
		if sel != nil {
			s.selector = sel
		}
	}
}

// WithSeed seeds the default selector. Zero seeds from the clock.
func WithSeed(seed uint64) Option {
	return func(s *Service) {
		s.selector = selector.New(selector.NewSource(seed))
	}
}

// WithStore sets the preference and history store. The service does not
// close a store it did not open.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSpinSchedule sets the cosmetic spin: steps picks, the first
// immediately, then pauses starting at initial and growing by k*increase.
func WithSpinSchedule(steps int, initial, increase time.Duration) Option {
	return func(s *Service) {
		if steps > 0 {
			s.schedule = selector.Schedule(steps, initial, increase)
		}
	}
}

// WithAutoStop controls whether a spin settles on its last pick once the
// schedule runs out.
func WithAutoStop(enabled bool) Option {
	return func(s *Service) {
		s.autoStop = enabled
	}
}

// WithMaxSessions bounds the session registry.
func WithMaxSessions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// WithSessionTTL evicts sessions untouched for longer than ttl.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithJanitorInterval sets how often expired sessions are swept.
func WithJanitorInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.janitorInterval = d
		}
	}
}

// WithWorkerCount sets the number of history writers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the draw event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many command request ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxHistoryLimit caps History's limit argument.
func WithMaxHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxHistory = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
