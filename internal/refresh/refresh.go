// Package refresh polls live prices for every tracked asset and appends the
// ones that changed to the snapshot store.
package refresh

import (
	"context"
	"errors"
	"time"

	"github.com/STTM-NSU/fintrack/internal/logger"
	"github.com/STTM-NSU/fintrack/internal/model"
	"github.com/STTM-NSU/fintrack/internal/quotes"
	"github.com/STTM-NSU/fintrack/internal/storage"
)

var ErrNoQuote = errors.New("no live quote")

type Resolver interface {
	Key(assetName string, class model.AssetClass) (string, error)
}

// TickReport counts what one tick did with each tracked asset.
type TickReport struct {
	Assets    int `json:"assets"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"` // market closed or class not quoted
	Failed    int `json:"failed"`
}

type Refresher struct {
	positions storage.PositionStore
	snapshots storage.SnapshotStore
	source    quotes.Source
	resolver  Resolver
	hours     MarketHours
	timeout   time.Duration
	now       func() time.Time

	logger logger.Logger
}

func NewRefresher(
	positions storage.PositionStore,
	snapshots storage.SnapshotStore,
	source quotes.Source,
	resolver Resolver,
	hours MarketHours,
	timeout time.Duration,
	logger logger.Logger,
) *Refresher {
	return &Refresher{
		positions: positions,
		snapshots: snapshots,
		source:    source,
		resolver:  resolver,
		hours:     hours,
		timeout:   timeout,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock replaces the wall clock. Used in tests.
func (r *Refresher) WithClock(now func() time.Time) *Refresher {
	r.now = now
	return r
}

func (r *Refresher) Name() string {
	return "price-refresh"
}

func (r *Refresher) Run(ctx context.Context) error {
	report, err := r.RunTick(ctx)
	if err != nil {
		return err
	}
	r.logger.Infof("price refresh: %d assets, %d updated, %d unchanged, %d skipped, %d failed",
		report.Assets, report.Updated, report.Unchanged, report.Skipped, report.Failed)
	return nil
}

// RunTick polls every tracked asset once. A failure of one asset never stops
// the tick; only a failure to load positions is returned.
func (r *Refresher) RunTick(ctx context.Context) (TickReport, error) {
	positions, err := r.positions.List(ctx, storage.Filter{Kind: model.Market})
	if err != nil {
		return TickReport{}, err
	}

	assets := model.TrackedAssets(positions)
	report := TickReport{Assets: len(assets)}
	marketOpen := r.hours.IsOpen(r.now())

	for _, a := range assets {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		switch {
		case a.Class == model.UnknownClass:
			r.logger.Debugf("skip %s: category is neither crypto nor stock", a.Name)
			report.Skipped++
			continue
		case a.Class == model.Equity && !marketOpen:
			report.Skipped++
			continue
		}

		updated, err := r.refreshAsset(ctx, a)
		switch {
		case err != nil:
			r.logger.Warnf("%s: can't refresh %s", err, a.Name)
			report.Failed++
		case updated:
			report.Updated++
		default:
			report.Unchanged++
		}
	}
	return report, nil
}

func (r *Refresher) refreshAsset(ctx context.Context, a model.Asset) (bool, error) {
	key, err := r.resolver.Key(a.Name, a.Class)
	if err != nil {
		return false, err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	price, ok := r.source.LiveQuote(callCtx, key, a.Class)
	cancel()
	if !ok {
		return false, ErrNoQuote
	}

	last, exists, err := r.snapshots.Latest(ctx, a.Name)
	if err != nil {
		return false, err
	}
	if exists && last == price {
		return false, nil
	}
	if err := r.snapshots.Append(ctx, a.Name, price, r.now()); err != nil {
		return false, err
	}
	r.logger.Debugf("saved new price of %s: %v", a.Name, price)
	return true, nil
}
