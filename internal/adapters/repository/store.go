// Package repository persists theme preferences and draw history.
package repository

import (
	"context"

	"github.com/okian/whattoeat/internal/domain/model"
	"github.com/okian/whattoeat/internal/domain/types"
)

// Store provides read/write access to persisted state.
type Store interface {
	// Theme returns the stored theme for a client. ok is false when the
	// client never saved one.
	Theme(ctx context.Context, clientID string) (theme string, ok bool, err error)
	// SetTheme stores the theme for a client, replacing any previous value.
	SetTheme(ctx context.Context, clientID, theme string) error

	// InsertDraw appends a settled draw to history.
	InsertDraw(ctx context.Context, e model.DrawEvent) error
	// RecentDraws returns up to limit draws, newest first.
	RecentDraws(ctx context.Context, limit int) ([]types.Draw, error)
	// VendorCounts tallies history per vendor, most drawn first.
	VendorCounts(ctx context.Context) ([]types.VendorCount, error)
	// Count returns the number of draws in history.
	Count(ctx context.Context) (int, error)

	Close() error
}
