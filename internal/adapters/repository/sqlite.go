package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/okian/whattoeat/internal/domain/model"
	"github.com/okian/whattoeat/internal/domain/selector"
	"github.com/okian/whattoeat/internal/domain/types"
	"github.com/okian/whattoeat/pkg/metrics"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

//go:embed schema.sql
var schema string

const (
	defaultBusyTimeout  = 5 * time.Second
	defaultMaxOpenConns = 4
	memoryPath          = ":memory:"
)

// SQLiteStore implements Store on top of an embedded sqlite database.
type SQLiteStore struct {
	db           *sql.DB
	busyTimeout  time.Duration
	maxOpenConns int
	now          func() time.Time
	closed       atomic.Bool
}

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrOpen)
	}
	s := &SQLiteStore{
		busyTimeout:  defaultBusyTimeout,
		maxOpenConns: defaultMaxOpenConns,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	dsn := path
	if path != memoryPath {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
			path, s.busyTimeout.Milliseconds())
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	// every connection to :memory: is its own database
	if path == memoryPath {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(s.maxOpenConns)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: apply schema: %w", ErrOpen, err)
	}
	s.db = db
	return s, nil
}

// Theme implements Store.
func (s *SQLiteStore) Theme(ctx context.Context, clientID string) (string, bool, error) {
	if err := s.check(); err != nil {
		return "", false, err
	}
	defer observeQuery(time.Now())

	var theme string
	err := s.db.QueryRowContext(ctx,
		`SELECT theme FROM preferences WHERE client_id = ?`, clientID).Scan(&theme)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		metrics.RecordRepositoryError("theme")
		return "", false, fmt.Errorf("read theme: %w", err)
	}
	return theme, true, nil
}

// SetTheme implements Store.
func (s *SQLiteStore) SetTheme(ctx context.Context, clientID, theme string) error {
	if err := s.check(); err != nil {
		return err
	}
	if clientID == "" {
		return fmt.Errorf("%w: empty client id", ErrInvalidInput)
	}
	defer observeWrite(time.Now())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (client_id, theme, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (client_id) DO UPDATE SET theme = excluded.theme, updated_at = excluded.updated_at`,
		clientID, theme, s.now().UnixNano())
	if err != nil {
		metrics.RecordRepositoryError("set_theme")
		return fmt.Errorf("write theme: %w", err)
	}
	return nil
}

// InsertDraw implements Store. Inserting an ID twice is a no-op.
func (s *SQLiteStore) InsertDraw(ctx context.Context, e model.DrawEvent) error { //nolint:gocritic // events travel by value through the queue
	if err := s.check(); err != nil {
		return err
	}
	if e.ID == "" || e.Result.Vendor == "" {
		return fmt.Errorf("%w: draw needs an id and a vendor", ErrInvalidInput)
	}
	defer observeWrite(time.Now())

	at := e.At
	if at.IsZero() {
		at = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO draws (id, session_id, source, grp, vendor, dish, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, e.SessionID, e.Source, e.Result.Group, e.Result.Vendor, e.Result.Dish, at.UnixNano())
	if err != nil {
		metrics.RecordRepositoryError("insert_draw")
		return fmt.Errorf("insert draw: %w", err)
	}
	return nil
}

// RecentDraws implements Store.
func (s *SQLiteStore) RecentDraws(ctx context.Context, limit int) ([]types.Draw, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	defer observeQuery(time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, source, grp, vendor, dish, created_at
		FROM draws ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		metrics.RecordRepositoryError("recent_draws")
		return nil, fmt.Errorf("query draws: %w", err)
	}
	defer rows.Close()

	out := make([]types.Draw, 0, limit)
	for rows.Next() {
		var (
			d  types.Draw
			ns int64
		)
		if err := rows.Scan(&d.ID, &d.SessionID, &d.Source, &d.Group, &d.Vendor, &d.Dish, &ns); err != nil {
			metrics.RecordRepositoryError("recent_draws")
			return nil, fmt.Errorf("scan draw: %w", err)
		}
		d.CreatedAt = time.Unix(0, ns).UTC()
		d.Label = selector.Label(selector.Result{Group: d.Group, Vendor: d.Vendor, Dish: d.Dish})
		out = append(out, d)
	}
	return out, rows.Err()
}

// VendorCounts implements Store.
func (s *SQLiteStore) VendorCounts(ctx context.Context) ([]types.VendorCount, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	defer observeQuery(time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT grp, vendor, COUNT(*) AS n FROM draws
		GROUP BY grp, vendor ORDER BY n DESC, grp, vendor`)
	if err != nil {
		metrics.RecordRepositoryError("vendor_counts")
		return nil, fmt.Errorf("query vendor counts: %w", err)
	}
	defer rows.Close()

	var out []types.VendorCount
	for rows.Next() {
		var vc types.VendorCount
		if err := rows.Scan(&vc.Group, &vc.Vendor, &vc.Count); err != nil {
			metrics.RecordRepositoryError("vendor_counts")
			return nil, fmt.Errorf("scan vendor count: %w", err)
		}
		out = append(out, vc)
	}
	return out, rows.Err()
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	defer observeQuery(time.Now())

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM draws`).Scan(&n); err != nil {
		metrics.RecordRepositoryError("count")
		return 0, fmt.Errorf("count draws: %w", err)
	}
	metrics.UpdateRepositoryDraws(n)
	return n, nil
}

// Close releases the database. Further calls return ErrClosed.
func (s *SQLiteStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) check() error {
	if s == nil || s.db == nil || s.closed.Load() {
		return ErrClosed
	}
	return nil
}

func observeQuery(start time.Time) {
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func observeWrite(start time.Time) {
	metrics.RecordRepositoryWriteLatency(float64(time.Since(start).Microseconds()) / 1000)
}
