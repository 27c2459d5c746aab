// Package service provides the core business service behind the HTTP API,
// the Telegram bot and the CLI.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/whattoeat/internal/adapters/mq/queue"
	workerpool "github.com/okian/whattoeat/internal/adapters/mq/worker"
	"github.com/okian/whattoeat/internal/adapters/repository"
	"github.com/okian/whattoeat/internal/domain/catalog"
	"github.com/okian/whattoeat/internal/domain/dedupe"
	"github.com/okian/whattoeat/internal/domain/model"
	"github.com/okian/whattoeat/internal/domain/selector"
	"github.com/okian/whattoeat/internal/domain/session"
	"github.com/okian/whattoeat/internal/domain/types"
	"github.com/okian/whattoeat/pkg/logger"
	"github.com/okian/whattoeat/pkg/metrics"
)

const (
	defaultWorkerCount     = 2
	defaultQueueSize       = 10_000
	defaultDedupeSize      = 50_000
	defaultMaxSessions     = 10_000
	defaultSessionTTL      = 30 * time.Minute
	defaultJanitorInterval = 30 * time.Second
	defaultMaxHistory      = 100
	shutdownTimeout        = 10 * time.Second
)

// Service implements draws, sessions, themes and history.
type Service struct {
	mu sync.RWMutex

	// Core components
	catalog  *catalog.Catalog
	selector *selector.Selector
	store    repository.Store
	deduper  dedupe.Deduper
	queue    *eventqueue.InMemoryQueue
	pool     *workerpool.Pool

	// Configuration
	schedule        []time.Duration
	autoStop        bool
	maxSessions     int
	sessionTTL      time.Duration
	janitorInterval time.Duration
	workerCount     int
	queueSize       int
	dedupeSize      int
	maxHistory      int
	now             func() time.Time

	// Sessions
	sessMu   sync.RWMutex
	sessions map[string]*entry

	// State
	started   bool
	ownsStore bool
	runCtx    context.Context
	runCancel context.CancelFunc
	janitor   sync.WaitGroup

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		schedule:        selector.Schedule(selector.DefaultSpinSteps, selector.DefaultSpinInitial, selector.DefaultSpinIncrease),
		autoStop:        true,
		maxSessions:     defaultMaxSessions,
		sessionTTL:      defaultSessionTTL,
		janitorInterval: defaultJanitorInterval,
		workerCount:     defaultWorkerCount,
		queueSize:       defaultQueueSize,
		dedupeSize:      defaultDedupeSize,
		maxHistory:      defaultMaxHistory,
		now:             time.Now,
		sessions:        make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.catalog == nil {
		s.catalog = catalog.Default()
	}
	if s.selector == nil {
		s.selector = selector.New(nil)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting whattoeat service...")

	if s.store == nil {
		store, err := repository.Open(ctx, ":memory:")
		if err != nil {
			return fmt.Errorf("open default store: %w", err)
		}
		s.store = store
		s.ownsStore = true
		s.logger.Info(ctx, "using in-memory store")
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))

	// workers and spinners outlive the start context; Stop ends them
	s.runCtx, s.runCancel = context.WithCancel(context.Background())
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.store)
	s.pool.Start(s.runCtx)

	s.janitor.Add(1)
	go s.sweep(s.runCtx)

	s.started = true
	s.logger.Info(ctx, "whattoeat service started",
		logger.Int("vendors", s.catalog.Len()),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("spinSteps", len(s.schedule)),
		logger.Bool("autoStop", s.autoStop),
	)
	return nil
}

// Stop gracefully shuts down the service. Queued draws are flushed to the
// store before it returns.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping whattoeat service...")

	s.started = false
	s.closeSessions()

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.pool.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "history writers did not drain", logger.Error(err))
	}

	s.runCancel()
	s.janitor.Wait()

	if s.ownsStore {
		_ = s.store.Close()
		s.store = nil
		s.ownsStore = false
	}
	s.logger.Info(ctx, "whattoeat service stopped")
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// storage returns the store of a running service. A caller racing with Stop
// keeps the old store, which then reports repository.ErrClosed.
func (s *Service) storage() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// Catalog returns the menu the service draws from.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// Draw makes a one-off draw outside any session and queues it for history.
func (s *Service) Draw(ctx context.Context, source string) (types.Draw, error) {
	if !s.isStarted() {
		return types.Draw{}, ErrNotStarted
	}
	r, err := s.selector.Pick(s.catalog)
	if err != nil {
		metrics.RecordDrawError()
		return types.Draw{}, fmt.Errorf("draw: %w", err)
	}
	if source == "" {
		source = model.SourceAPI
	}
	return s.settle(ctx, "", source, r), nil
}

// settle stamps a final result and hands it to the history writers.
func (s *Service) settle(ctx context.Context, sessionID, source string, r selector.Result) types.Draw {
	d := types.Draw{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Source:    source,
		Group:     r.Group,
		Vendor:    r.Vendor,
		Dish:      r.Dish,
		Label:     selector.Label(r),
		CreatedAt: s.now().UTC(),
	}
	metrics.RecordDraw(source, r.Group)

	ev := model.DrawEvent{ID: d.ID, SessionID: sessionID, Source: source, Result: r, At: d.CreatedAt}
	if !s.queue.Enqueue(ctx, ev) {
		s.logger.Warn(ctx, "history queue rejected draw", logger.String("draw_id", d.ID))
	}
	s.logger.Debug(ctx, "draw settled",
		logger.String("draw_id", d.ID),
		logger.String("source", source),
		logger.String("vendor", r.Vendor),
		logger.String("dish", r.Dish),
	)
	return d
}

// Theme returns the client's stored theme, or the platform preference when
// nothing was stored.
func (s *Service) Theme(ctx context.Context, clientID string, prefersDark bool) (session.Theme, error) {
	store, err := s.storage()
	if err != nil {
		return "", err
	}
	if clientID == "" {
		return session.Resolve("", prefersDark), nil
	}
	stored, _, err := store.Theme(ctx, clientID)
	if err != nil {
		return "", fmt.Errorf("load theme: %w", err)
	}
	return session.Resolve(stored, prefersDark), nil
}

// SetTheme stores theme for the client.
func (s *Service) SetTheme(ctx context.Context, clientID string, theme session.Theme) error {
	store, err := s.storage()
	if err != nil {
		return err
	}
	if clientID == "" {
		return ErrInvalidClient
	}
	if _, err := session.ParseTheme(string(theme)); err != nil {
		return err
	}
	if err := store.SetTheme(ctx, clientID, string(theme)); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	metrics.RecordThemeChange(string(theme))
	return nil
}

// ToggleTheme flips the client's effective theme and stores the result.
func (s *Service) ToggleTheme(ctx context.Context, clientID string, prefersDark bool) (session.Theme, error) {
	current, err := s.Theme(ctx, clientID, prefersDark)
	if err != nil {
		return "", err
	}
	next := current.Toggle()
	if err := s.SetTheme(ctx, clientID, next); err != nil {
		return "", err
	}
	return next, nil
}

// History returns up to limit persisted draws, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]types.Draw, error) {
	store, err := s.storage()
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > s.maxHistory {
		return nil, fmt.Errorf("%w: must be between 1 and %d", ErrInvalidLimit, s.maxHistory)
	}
	return store.RecentDraws(ctx, limit)
}

// VendorCounts tallies persisted draws per vendor.
func (s *Service) VendorCounts(ctx context.Context) ([]types.VendorCount, error) {
	store, err := s.storage()
	if err != nil {
		return nil, err
	}
	return store.VendorCounts(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"vendors":     s.catalog.Len(),
		"groups":      len(s.catalog.Groups()),
		"dishes":      s.catalog.DishCount(),
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"spinSteps":   len(s.schedule),
		"spinMs":      selector.Total(s.schedule).Milliseconds(),
		"autoStop":    s.autoStop,
	}

	s.sessMu.RLock()
	stats["sessions"] = len(s.sessions)
	s.sessMu.RUnlock()

	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["queueSize"] = s.queue.Capacity()
		stats["dedupeEntries"] = s.deduper.Size()
		if n, err := s.store.Count(ctx); err == nil {
			stats["totalDraws"] = n
		}
		metrics.UpdateWorkerCount(s.pool.Size())
	}
	return stats
}
