// Package portfolio is the facade the HTTP layer talks to. It loads stored
// state, hands it to the valuation engine and triggers the price jobs.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/STTM-NSU/fintrack/internal/backfill"
	"github.com/STTM-NSU/fintrack/internal/logger"
	"github.com/STTM-NSU/fintrack/internal/model"
	"github.com/STTM-NSU/fintrack/internal/refresh"
	"github.com/STTM-NSU/fintrack/internal/storage"
	"github.com/STTM-NSU/fintrack/internal/tools"
	"github.com/STTM-NSU/fintrack/internal/valuation"
)

type Stores struct {
	Positions  storage.PositionStore
	Snapshots  storage.SnapshotStore
	References storage.ReferenceCache
	History    storage.HistoryStore
	Categories storage.CategoryStore
	Lots       storage.LotStore
}

type TickRunner interface {
	RunTick(ctx context.Context) (refresh.TickReport, error)
}

type Backfiller interface {
	Backfill(ctx context.Context) (backfill.Report, error)
}

type Service struct {
	stores    Stores
	refresher TickRunner
	backfill  Backfiller
	now       func() time.Time

	logger logger.Logger
}

func NewService(stores Stores, refresher TickRunner, backfill Backfiller, logger logger.Logger) *Service {
	return &Service{
		stores:    stores,
		refresher: refresher,
		backfill:  backfill,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock replaces the wall clock. Used in tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) load(ctx context.Context, f storage.Filter) ([]model.Position, map[string]float64, error) {
	positions, err := s.stores.Positions.List(ctx, f)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: can't load positions", err)
	}
	latest, err := s.stores.Snapshots.LatestAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: can't load latest prices", err)
	}
	return positions, latest, nil
}

// Overview values every position. Positions without a known price are part
// of the result with empty price fields.
func (s *Service) Overview(ctx context.Context) ([]model.PositionValuation, error) {
	positions, latest, err := s.load(ctx, storage.Filter{})
	if err != nil {
		return nil, err
	}
	return valuation.Valuate(positions, latest, s.now()), nil
}

func (s *Service) MergedByCategory(ctx context.Context, category string) ([]model.MergedAssetRow, error) {
	if category == "" {
		return nil, fmt.Errorf("%w: empty category", model.ErrInvalidInput)
	}
	positions, latest, err := s.load(ctx, storage.Filter{Category: category})
	if err != nil {
		return nil, err
	}
	return valuation.MergeByAsset(valuation.Valuate(positions, latest, s.now())), nil
}

// Stats computes the portfolio totals and records the total value into the
// history when it moved by at least a cent since the last point.
func (s *Service) Stats(ctx context.Context) (model.PortfolioStats, error) {
	positions, latest, err := s.load(ctx, storage.Filter{})
	if err != nil {
		return model.PortfolioStats{}, err
	}
	monthStart, err := s.stores.References.ByWindow(ctx, model.CurrentMonthStart)
	if err != nil {
		return model.PortfolioStats{}, fmt.Errorf("%w: can't load month start prices", err)
	}

	now := s.now()
	metrics := valuation.Aggregate(valuation.Valuate(positions, latest, now))
	stats := model.PortfolioStats{
		TotalValue:     metrics.TotalValue,
		MonthlyGain:    valuation.MonthlyGain(positions, latest, monthStart, now),
		TotalProfitPct: metrics.TotalProfitPct,
	}

	if err := s.record(ctx, stats.TotalValue, now); err != nil {
		s.logger.Errorf("%s: can't record portfolio history", err)
	}
	return stats, nil
}

func (s *Service) record(ctx context.Context, total float64, now time.Time) error {
	last, ok, err := s.stores.History.LastPoint(ctx)
	if err != nil {
		return err
	}
	if ok && !tools.Differs(last.TotalValue, total) {
		return nil
	}
	return s.stores.History.Append(ctx, total, now)
}

func (s *Service) History(ctx context.Context) ([]model.HistoryPoint, error) {
	points, err := s.stores.History.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: can't load portfolio history", err)
	}
	return points, nil
}

// Change compares the portfolio now with its value at the start of a fixed
// lookback window.
func (s *Service) Change(ctx context.Context, w model.Window) (model.PeriodChange, error) {
	if w == model.CurrentMonthStart {
		return model.PeriodChange{}, fmt.Errorf("%w: period %s is not a lookback window", model.ErrInvalidInput, w)
	}
	positions, latest, err := s.load(ctx, storage.Filter{})
	if err != nil {
		return model.PeriodChange{}, err
	}
	reference, err := s.stores.References.ByWindow(ctx, w)
	if err != nil {
		return model.PeriodChange{}, fmt.Errorf("%w: can't load %s reference prices", err, w)
	}
	return valuation.PeriodChange(positions, latest, reference, w, s.now())
}

// MarketPrices lists stored snapshots of one asset, newest first.
func (s *Service) MarketPrices(ctx context.Context, asset string) ([]model.PriceSnapshot, error) {
	if asset == "" {
		return nil, fmt.Errorf("%w: empty asset name", model.ErrInvalidInput)
	}
	return s.stores.Snapshots.List(ctx, asset)
}

var ErrJobDisabled = errors.New("job is not configured")

func (s *Service) RunPriceRefreshTick(ctx context.Context) (refresh.TickReport, error) {
	if s.refresher == nil {
		return refresh.TickReport{}, ErrJobDisabled
	}
	return s.refresher.RunTick(ctx)
}

func (s *Service) RunHistoricalBackfill(ctx context.Context) (backfill.Report, error) {
	if s.backfill == nil {
		return backfill.Report{}, ErrJobDisabled
	}
	return s.backfill.Backfill(ctx)
}
