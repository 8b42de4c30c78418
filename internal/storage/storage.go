// Package storage declares the stores the valuation engine reads from and
// writes to. Implementations live in the pg and memory subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/STTM-NSU/fintrack/internal/model"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

type Filter struct {
	Category string
	Kind     model.InstrumentKind
}

// Match reports whether the position passes the filter. Empty fields match
// everything.
func (f Filter) Match(p model.Position) bool {
	if f.Category != "" && model.NormalizeCategory(f.Category) != model.NormalizeCategory(p.Category) {
		return false
	}
	if f.Kind != "" && f.Kind != p.Kind {
		return false
	}
	return true
}

type PositionStore interface {
	List(ctx context.Context, f Filter) ([]model.Position, error)
	Get(ctx context.Context, id string) (model.Position, error)
	Create(ctx context.Context, p model.Position) (model.Position, error)
	Update(ctx context.Context, p model.Position) (model.Position, error)
	Delete(ctx context.Context, id string) error
}

type SnapshotStore interface {
	Latest(ctx context.Context, asset string) (float64, bool, error)
	LatestAll(ctx context.Context) (map[string]float64, error)
	Append(ctx context.Context, asset string, price float64, ts time.Time) error
	// List returns snapshots of one asset, newest first.
	List(ctx context.Context, asset string) ([]model.PriceSnapshot, error)
}

// ReferenceCache keeps at most one reference price per (asset, window).
// PutIfAbsent never overwrites: a wrong value stays until Invalidate is
// called for its key.
type ReferenceCache interface {
	Get(ctx context.Context, asset string, w model.Window) (model.ReferencePrice, bool, error)
	PutIfAbsent(ctx context.Context, r model.ReferencePrice) (bool, error)
	Invalidate(ctx context.Context, asset string, w model.Window) error
	ByWindow(ctx context.Context, w model.Window) (map[string]float64, error)
}

type HistoryStore interface {
	LastPoint(ctx context.Context) (model.HistoryPoint, bool, error)
	Append(ctx context.Context, totalValue float64, ts time.Time) error
	// List returns all points ordered by timestamp ascending.
	List(ctx context.Context) ([]model.HistoryPoint, error)
}

type CategoryStore interface {
	List(ctx context.Context) ([]model.Category, error)
	FindByName(ctx context.Context, name string) (model.Category, error)
	Create(ctx context.Context, c model.Category) (model.Category, error)
	Delete(ctx context.Context, id string) error
}

type LotStore interface {
	// List returns the lots of one position, newest first.
	List(ctx context.Context, positionID string) ([]model.PurchaseLot, error)
	Create(ctx context.Context, l model.PurchaseLot) (model.PurchaseLot, error)
}
