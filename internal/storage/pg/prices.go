package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/STTM-NSU/fintrack/internal/model"
	"github.com/jmoiron/sqlx"
)

const (
	_queryLatestSnapshot = "SELECT price FROM price_snapshots WHERE asset_name = $1 ORDER BY ts DESC, id DESC LIMIT 1"
	_queryLatestAll      = `SELECT DISTINCT ON (asset_name) asset_name, ts, price
							FROM price_snapshots
							ORDER BY asset_name, ts DESC, id DESC`
	_querySnapshots = "SELECT asset_name, ts, price FROM price_snapshots WHERE asset_name = $1 ORDER BY ts DESC, id DESC"
	_insertSnapshot = "INSERT INTO price_snapshots (asset_name, ts, price) VALUES ($1, $2, $3)"
)

type SnapshotStore struct {
	db *sqlx.DB
}

func NewSnapshotStore(db *sqlx.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) Latest(ctx context.Context, asset string) (float64, bool, error) {
	var price float64
	if err := s.db.GetContext(ctx, &price, _queryLatestSnapshot, asset); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%w: can't query latest price of %s", err, asset)
	}
	return price, true, nil
}

func (s *SnapshotStore) LatestAll(ctx context.Context) (map[string]float64, error) {
	var snaps []model.PriceSnapshot
	if err := s.db.SelectContext(ctx, &snaps, _queryLatestAll); err != nil {
		return nil, fmt.Errorf("%w: can't query latest prices", err)
	}
	out := make(map[string]float64, len(snaps))
	for _, snap := range snaps {
		out[snap.AssetName] = snap.Price
	}
	return out, nil
}

func (s *SnapshotStore) Append(ctx context.Context, asset string, price float64, ts time.Time) error {
	if _, err := s.db.ExecContext(ctx, _insertSnapshot, asset, ts, price); err != nil {
		return fmt.Errorf("%w: can't insert price snapshot of %s", err, asset)
	}
	return nil
}

func (s *SnapshotStore) List(ctx context.Context, asset string) ([]model.PriceSnapshot, error) {
	var snaps []model.PriceSnapshot
	if err := s.db.SelectContext(ctx, &snaps, _querySnapshots, asset); err != nil {
		return nil, fmt.Errorf("%w: can't query price snapshots of %s", err, asset)
	}
	return snaps, nil
}

const (
	_queryReference  = "SELECT asset_name, window_label, price, as_of_date, fetched_at FROM reference_prices WHERE asset_name = $1 AND window_label = $2"
	_queryByWindow   = "SELECT asset_name, window_label, price, as_of_date, fetched_at FROM reference_prices WHERE window_label = $1"
	_insertReference = `INSERT INTO reference_prices (
							asset_name, window_label, price, as_of_date, fetched_at
						) VALUES ($1, $2, $3, $4, $5)
						ON CONFLICT ON CONSTRAINT asset_window DO NOTHING`
	_deleteReference = "DELETE FROM reference_prices WHERE asset_name = $1 AND window_label = $2"
)

// ReferenceCache relies on the asset_window unique constraint, so concurrent
// backfills can't overwrite a stored reference.
type ReferenceCache struct {
	db *sqlx.DB
}

func NewReferenceCache(db *sqlx.DB) *ReferenceCache {
	return &ReferenceCache{db: db}
}

func (c *ReferenceCache) Get(ctx context.Context, asset string, w model.Window) (model.ReferencePrice, bool, error) {
	var r model.ReferencePrice
	if err := c.db.GetContext(ctx, &r, _queryReference, asset, w); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, false, nil
		}
		return r, false, fmt.Errorf("%w: can't query %s reference price of %s", err, w, asset)
	}
	return r, true, nil
}

func (c *ReferenceCache) PutIfAbsent(ctx context.Context, r model.ReferencePrice) (bool, error) {
	res, err := c.db.ExecContext(ctx, _insertReference, r.AssetName, r.Window, r.Price, r.AsOfDate, r.FetchedAt)
	if err != nil {
		return false, fmt.Errorf("%w: can't insert %s reference price of %s", err, r.Window, r.AssetName)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: can't get affected rows", err)
	}
	return n > 0, nil
}

func (c *ReferenceCache) Invalidate(ctx context.Context, asset string, w model.Window) error {
	if _, err := c.db.ExecContext(ctx, _deleteReference, asset, w); err != nil {
		return fmt.Errorf("%w: can't delete %s reference price of %s", err, w, asset)
	}
	return nil
}

func (c *ReferenceCache) ByWindow(ctx context.Context, w model.Window) (map[string]float64, error) {
	var refs []model.ReferencePrice
	if err := c.db.SelectContext(ctx, &refs, _queryByWindow, w); err != nil {
		return nil, fmt.Errorf("%w: can't query %s reference prices", err, w)
	}
	out := make(map[string]float64, len(refs))
	for _, r := range refs {
		out[r.AssetName] = r.Price
	}
	return out, nil
}
