// Package backfill fills the reference price cache with historical prices
// of every tracked asset, one per lookback window.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/STTM-NSU/fintrack/internal/logger"
	"github.com/STTM-NSU/fintrack/internal/model"
	"github.com/STTM-NSU/fintrack/internal/quotes"
	"github.com/STTM-NSU/fintrack/internal/storage"
)

type Resolver interface {
	Key(assetName string, class model.AssetClass) (string, error)
}

type Report struct {
	Assets     int `json:"assets"`
	Fetched    int `json:"fetched"`    // new reference prices stored
	Cached     int `json:"cached"`     // already present, no upstream call
	Skipped    int `json:"skipped"`    // unquoted class
	Unresolved int `json:"unresolved"` // no external key for the name
	Failed     int `json:"failed"`     // upstream had no price
}

type Job struct {
	positions storage.PositionStore
	refs      storage.ReferenceCache
	source    quotes.Source
	resolver  Resolver
	now       func() time.Time

	logger logger.Logger
}

func NewJob(
	positions storage.PositionStore,
	refs storage.ReferenceCache,
	source quotes.Source,
	resolver Resolver,
	logger logger.Logger,
) *Job {
	return &Job{
		positions: positions,
		refs:      refs,
		source:    source,
		resolver:  resolver,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock replaces the wall clock. Used in tests.
func (j *Job) WithClock(now func() time.Time) *Job {
	j.now = now
	return j
}

func (j *Job) Name() string {
	return "historical-backfill"
}

func (j *Job) Run(ctx context.Context) error {
	report, err := j.Backfill(ctx)
	if err != nil {
		return err
	}
	j.logger.Infof("backfill: %d assets, %d fetched, %d cached, %d skipped, %d unresolved, %d failed",
		report.Assets, report.Fetched, report.Cached, report.Skipped, report.Unresolved, report.Failed)
	return nil
}

// Windows are the reference windows filled for each asset.
var Windows = append(append([]model.Window{}, model.FixedWindows...), model.CurrentMonthStart)

// Backfill stores missing reference prices. A stored fixed-window price is
// never refetched, even if it was wrong. The current month start price is
// refetched once the month rolls over.
func (j *Job) Backfill(ctx context.Context) (Report, error) {
	positions, err := j.positions.List(ctx, storage.Filter{Kind: model.Market})
	if err != nil {
		return Report{}, fmt.Errorf("%w: can't list positions", err)
	}

	now := j.now().UTC()
	assets := model.TrackedAssets(positions)
	report := Report{Assets: len(assets)}
	fetched := make(map[quoteKey]quote)

	for _, a := range assets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if a.Class == model.UnknownClass {
			report.Skipped++
			continue
		}

		key, err := j.resolver.Key(a.Name, a.Class)
		if err != nil {
			j.logger.Warnf("%s: missing symbol for %s", err, a.Name)
			report.Unresolved++
			continue
		}

		for _, w := range Windows {
			stored, err := j.fill(ctx, fetched, a, key, w, now)
			switch {
			case errors.Is(err, errCached):
				report.Cached++
			case err != nil:
				j.logger.Warnf("%s: can't backfill %s [%s]", err, a.Name, w)
				report.Failed++
			case stored:
				report.Fetched++
			default:
				report.Cached++
			}
		}
	}
	return report, nil
}

// quoteKey identifies one upstream call. Names spelled differently can share
// an external key; the upstream is asked once per run.
type quoteKey struct {
	key    string
	class  model.AssetClass
	window model.Window
}

type quote struct {
	price float64
	ok    bool
}

var (
	errCached  = errors.New("already cached")
	errNoPrice = errors.New("no historical price")
)

func (j *Job) fill(ctx context.Context, fetched map[quoteKey]quote, a model.Asset, key string, w model.Window, now time.Time) (bool, error) {
	asset := a.Name
	existing, ok, err := j.refs.Get(ctx, asset, w)
	if err != nil {
		return false, err
	}
	if ok {
		if w != model.CurrentMonthStart || !stale(existing, now) {
			return false, errCached
		}
		if err := j.refs.Invalidate(ctx, asset, w); err != nil {
			return false, err
		}
	}

	date := w.Since(now)
	qk := quoteKey{key: key, class: a.Class, window: w}
	q, seen := fetched[qk]
	if !seen {
		q.price, q.ok = j.source.HistoricalQuote(ctx, key, a.Class, date)
		fetched[qk] = q
	}
	if !q.ok {
		return false, errNoPrice
	}
	price := q.price

	stored, err := j.refs.PutIfAbsent(ctx, model.ReferencePrice{
		AssetName: asset,
		Window:    w,
		Price:     price,
		AsOfDate:  date,
		FetchedAt: now,
	})
	if err != nil {
		return false, err
	}
	if stored {
		j.logger.Debugf("saved historical price of %s [%s] = %v", asset, w, price)
	}
	return stored, nil
}

// stale reports whether a month start reference belongs to an earlier month.
func stale(r model.ReferencePrice, now time.Time) bool {
	return r.AsOfDate.Before(model.MonthStart(now))
}
