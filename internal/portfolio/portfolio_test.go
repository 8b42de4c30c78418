package portfolio

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/STTM-NSU/fintrack/internal/backfill"
	"github.com/STTM-NSU/fintrack/internal/config"
	"github.com/STTM-NSU/fintrack/internal/logger"
	"github.com/STTM-NSU/fintrack/internal/model"
	"github.com/STTM-NSU/fintrack/internal/quotes"
	"github.com/STTM-NSU/fintrack/internal/quotes/symbols"
	"github.com/STTM-NSU/fintrack/internal/refresh"
	"github.com/STTM-NSU/fintrack/internal/storage/memory"
	"github.com/STTM-NSU/fintrack/internal/tools"
	"github.com/STTM-NSU/fintrack/internal/valuation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday, NYSE open
var _now = time.Date(2025, time.June, 18, 15, 0, 0, 0, time.UTC)

type fakeSource struct {
	mu         sync.Mutex
	live       map[string]float64
	historical map[string]float64
	slow       map[string]bool
}

func (f *fakeSource) LiveQuote(ctx context.Context, key string, _ model.AssetClass) (float64, bool) {
	f.mu.Lock()
	price, ok := f.live[key]
	slow := f.slow[key]
	f.mu.Unlock()
	if slow {
		<-ctx.Done()
		return 0, false
	}
	return price, ok
}

func (f *fakeSource) HistoricalQuote(_ context.Context, key string, _ model.AssetClass, _ time.Time) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	price, ok := f.historical[key]
	return price, ok
}

type fixture struct {
	svc    *Service
	source *fakeSource
	stores Stores
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stores := Stores{
		Positions:  memory.NewPositionStore(),
		Snapshots:  memory.NewSnapshotStore(),
		References: memory.NewReferenceCache(),
		History:    memory.NewHistoryStore(),
		Categories: memory.NewCategoryStore(),
		Lots:       memory.NewLotStore(),
	}
	source := &fakeSource{live: map[string]float64{}, historical: map[string]float64{}, slow: map[string]bool{}}
	resolver := quotes.NewResolver(symbols.New([]symbols.Stock{
		{Name: "Apple Inc. Common Stock", Display: "AAPL"},
		{Name: "Tesla, Inc. Common Stock", Display: "TSLA"},
	}))
	hours, err := refresh.NewMarketHours(config.MarketHoursConfig{Open: "13:30", Close: "20:00"})
	require.NoError(t, err)

	clock := func() time.Time { return _now }
	l := logger.NewNop()
	refresher := refresh.NewRefresher(stores.Positions, stores.Snapshots, source, resolver, hours, 50*time.Millisecond, l).WithClock(clock)
	job := backfill.NewJob(stores.Positions, stores.References, source, resolver, l).WithClock(clock)

	svc := NewService(stores, refresher, job, l).WithClock(clock)
	for _, name := range []string{"stocks", "bonds", "crypto"} {
		_, err := svc.CreateCategory(context.Background(), name)
		require.NoError(t, err)
	}
	return &fixture{svc: svc, source: source, stores: stores}
}

func (f *fixture) create(t *testing.T, in PositionInput) model.Position {
	t.Helper()
	p, err := f.svc.CreatePosition(context.Background(), in)
	require.NoError(t, err)
	return p
}

func stockInput(name string, amount, price float64) PositionInput {
	return PositionInput{
		AssetName:      tools.Ptr(name),
		Category:       tools.Ptr("Stocks"),
		Amount:         tools.Ptr(amount),
		CostBasisPrice: tools.Ptr(price),
		PurchaseDate:   tools.Ptr(_now.AddDate(-1, 0, 0)),
	}
}

func bondInput() PositionInput {
	return PositionInput{
		AssetName:      tools.Ptr("Government bond 2030"),
		Category:       tools.Ptr("bond"),
		Amount:         tools.Ptr(10000.0),
		CostBasisPrice: tools.Ptr(1.0),
		PurchaseDate:   tools.Ptr(_now.Add(-12 * valuation.AverageMonth)),
		AnnualRatePct:  tools.Ptr(3.5),
		TermMonths:     tools.Ptr(72),
	}
}

func TestOverviewStockAndBond(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.source.live["AAPL"] = 170
	f.create(t, stockInput("Apple", 10, 145))
	bond := f.create(t, bondInput())
	assert.Equal(t, model.Accruing, bond.Kind)
	assert.Equal(t, "Bonds", bond.Category)

	report, err := f.svc.RunPriceRefreshTick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)

	rows, err := f.svc.Overview(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	apple := rows[0]
	assert.Equal(t, "Apple", apple.AssetName)
	assert.Equal(t, 250.0, tools.RoundMoney(*apple.AbsoluteChange))
	assert.Equal(t, 17.24, tools.RoundMoney(*apple.PctChange))

	b := rows[1]
	assert.Equal(t, 350.0, tools.RoundMoney(*b.AbsoluteChange))
	assert.Equal(t, 3.5, tools.RoundMoney(*b.PctChange))

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12050.0, tools.RoundMoney(stats.TotalValue))
}

func TestOverviewWithTimedOutQuote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.source.live["AAPL"] = 170
	f.source.slow["TSLA"] = true
	f.create(t, stockInput("Apple", 10, 145))
	f.create(t, stockInput("Tesla", 2, 200))

	report, err := f.svc.RunPriceRefreshTick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	rows, err := f.svc.Overview(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.NotNil(t, rows[0].CurrentPrice)
	assert.Nil(t, rows[1].CurrentPrice)
	assert.Nil(t, rows[1].CurrentValue)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1700, stats.TotalValue, 1e-9)
}

func TestStatsRecordsHistoryOnChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.source.live["AAPL"] = 170
	f.create(t, stockInput("Apple", 10, 145))
	_, err := f.svc.RunPriceRefreshTick(ctx)
	require.NoError(t, err)

	for range 3 {
		_, err := f.svc.Stats(ctx)
		require.NoError(t, err)
	}
	points, err := f.svc.History(ctx)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 1700.0, points[0].TotalValue)

	// 0.0001 * 10 is below a cent
	require.NoError(t, f.stores.Snapshots.Append(ctx, "Apple", 170.0001, _now.Add(time.Second)))
	_, err = f.svc.Stats(ctx)
	require.NoError(t, err)
	points, err = f.svc.History(ctx)
	require.NoError(t, err)
	require.Len(t, points, 1)

	require.NoError(t, f.stores.Snapshots.Append(ctx, "Apple", 171, _now.Add(2*time.Second)))
	_, err = f.svc.Stats(ctx)
	require.NoError(t, err)
	points, err = f.svc.History(ctx)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 1710.0, points[1].TotalValue)
}

func TestStatsMonthlyGainAfterBackfill(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.source.live["AAPL"] = 170
	f.source.historical["AAPL"] = 160
	f.create(t, stockInput("Apple", 10, 145))
	f.create(t, bondInput())

	_, err := f.svc.RunPriceRefreshTick(ctx)
	require.NoError(t, err)
	report, err := f.svc.RunHistoricalBackfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(backfill.Windows), report.Fetched)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)

	bondStart := 10000 + valuation.Accrued(10000, 3.5, 11.0/12)
	want := (12050 - (1600 + bondStart)) / (1600 + bondStart) * 100
	assert.InDelta(t, want, stats.MonthlyGain, 1e-6)
	assert.InDelta(t, (12050.0-11450)/11450*100, stats.TotalProfitPct, 1e-6)
}

func TestChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.source.live["AAPL"] = 170
	f.source.historical["AAPL"] = 150
	f.create(t, stockInput("Apple", 10, 145))

	_, err := f.svc.Change(ctx, model.Week)
	assert.ErrorIs(t, err, model.ErrInsufficientData)

	_, err = f.svc.RunPriceRefreshTick(ctx)
	require.NoError(t, err)
	_, err = f.svc.RunHistoricalBackfill(ctx)
	require.NoError(t, err)

	change, err := f.svc.Change(ctx, model.Week)
	require.NoError(t, err)
	assert.InDelta(t, 1500, change.TotalBefore, 1e-9)
	assert.InDelta(t, 1700, change.TotalNow, 1e-9)

	_, err = f.svc.Change(ctx, model.CurrentMonthStart)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestMergedByCategory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.source.live["AAPL"] = 170
	f.source.live["bitcoin"] = 60000
	f.create(t, stockInput("Apple", 10, 145))
	f.create(t, stockInput("Apple", 5, 160))
	f.create(t, PositionInput{
		AssetName:      tools.Ptr("Bitcoin"),
		Category:       tools.Ptr("Crypto"),
		Amount:         tools.Ptr(0.1),
		CostBasisPrice: tools.Ptr(50000.0),
	})
	_, err := f.svc.RunPriceRefreshTick(ctx)
	require.NoError(t, err)

	rows, err := f.svc.MergedByCategory(ctx, "stock")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 15.0, rows[0].Amount)
	assert.InDelta(t, 2550, rows[0].CurrentValue, 1e-9)

	_, err = f.svc.MergedByCategory(ctx, "")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestMarketPrices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.source.live["AAPL"] = 170
	f.create(t, stockInput("Apple", 1, 1))
	_, err := f.svc.RunPriceRefreshTick(ctx)
	require.NoError(t, err)

	snaps, err := f.svc.MarketPrices(ctx, "Apple")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 170.0, snaps[0].Price)
	assert.Equal(t, _now, snaps[0].Timestamp)
}

func TestJobsDisabled(t *testing.T) {
	svc := NewService(Stores{}, nil, nil, logger.NewNop())

	_, err := svc.RunPriceRefreshTick(context.Background())
	assert.ErrorIs(t, err, ErrJobDisabled)
	_, err = svc.RunHistoricalBackfill(context.Background())
	assert.ErrorIs(t, err, ErrJobDisabled)
}
