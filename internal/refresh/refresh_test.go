package refresh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/STTM-NSU/fintrack/internal/config"
	"github.com/STTM-NSU/fintrack/internal/logger"
	"github.com/STTM-NSU/fintrack/internal/model"
	"github.com/STTM-NSU/fintrack/internal/quotes"
	"github.com/STTM-NSU/fintrack/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_wednesdayOpen   = time.Date(2025, time.June, 18, 15, 0, 0, 0, time.UTC)
	_wednesdayClosed = time.Date(2025, time.June, 18, 21, 0, 0, 0, time.UTC)
)

type fakeSource struct {
	mu     sync.Mutex
	prices map[string]float64
	slow   map[string]bool
	calls  map[string]int
}

func newFakeSource(prices map[string]float64) *fakeSource {
	return &fakeSource{prices: prices, slow: map[string]bool{}, calls: map[string]int{}}
}

func (f *fakeSource) LiveQuote(ctx context.Context, key string, _ model.AssetClass) (float64, bool) {
	f.mu.Lock()
	f.calls[key]++
	slow := f.slow[key]
	price, ok := f.prices[key]
	f.mu.Unlock()

	if slow {
		<-ctx.Done()
		return 0, false
	}
	return price, ok
}

func (f *fakeSource) HistoricalQuote(context.Context, string, model.AssetClass, time.Time) (float64, bool) {
	return 0, false
}

type nameResolver struct{}

func (nameResolver) Key(name string, class model.AssetClass) (string, error) {
	if class == model.UnknownClass {
		return "", quotes.ErrUnsupportedClass
	}
	return name, nil
}

func defaultHours(t *testing.T) MarketHours {
	t.Helper()
	h, err := NewMarketHours(config.MarketHoursConfig{Open: "13:30", Close: "20:00"})
	require.NoError(t, err)
	return h
}

type fixture struct {
	positions *memory.PositionStore
	snapshots *memory.SnapshotStore
	source    *fakeSource
	refresher *Refresher
}

func newFixture(t *testing.T, now time.Time, prices map[string]float64, positions ...model.Position) fixture {
	t.Helper()
	f := fixture{
		positions: memory.NewPositionStore(),
		snapshots: memory.NewSnapshotStore(),
		source:    newFakeSource(prices),
	}
	for _, p := range positions {
		_, err := f.positions.Create(context.Background(), p)
		require.NoError(t, err)
	}
	f.refresher = NewRefresher(f.positions, f.snapshots, f.source, nameResolver{}, defaultHours(t), 50*time.Millisecond, logger.NewNop()).
		WithClock(func() time.Time { return now })
	return f
}

func market(name, category string) model.Position {
	return model.Position{AssetName: name, Category: category, Kind: model.Market, Amount: 1, CostBasisPrice: 1}
}

func TestRunTickDeduplicatesAssets(t *testing.T) {
	f := newFixture(t, _wednesdayOpen, map[string]float64{"Apple": 170},
		market("Apple", "Stocks"), market("Apple", "Stocks"), market("Apple", "Stocks"))

	report, err := f.refresher.RunTick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, f.source.calls["Apple"])
	assert.Equal(t, TickReport{Assets: 1, Updated: 1}, report)
}

func TestRunTickEqualityGate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, _wednesdayOpen, map[string]float64{"Apple": 170}, market("Apple", "Stocks"))

	_, err := f.refresher.RunTick(ctx)
	require.NoError(t, err)
	report, err := f.refresher.RunTick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unchanged)

	f.source.prices["Apple"] = 171
	_, err = f.refresher.RunTick(ctx)
	require.NoError(t, err)

	snaps, err := f.snapshots.List(ctx, "Apple")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 171.0, snaps[0].Price)
	assert.Equal(t, 170.0, snaps[1].Price)
}

func TestRunTickMarketClosed(t *testing.T) {
	f := newFixture(t, _wednesdayClosed, map[string]float64{"Apple": 170, "Bitcoin": 65000},
		market("Apple", "Stocks"), market("Bitcoin", "Crypto"))

	report, err := f.refresher.RunTick(context.Background())
	require.NoError(t, err)

	assert.Zero(t, f.source.calls["Apple"])
	assert.Equal(t, 1, f.source.calls["Bitcoin"])
	assert.Equal(t, TickReport{Assets: 2, Updated: 1, Skipped: 1}, report)
}

func TestRunTickSkipsUnknownClass(t *testing.T) {
	f := newFixture(t, _wednesdayOpen, map[string]float64{"Gold": 2300}, market("Gold", "Commodities"))

	report, err := f.refresher.RunTick(context.Background())
	require.NoError(t, err)

	assert.Zero(t, f.source.calls["Gold"])
	assert.Equal(t, 1, report.Skipped)
}

func TestRunTickTimeoutDoesNotStallOthers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, _wednesdayOpen, map[string]float64{"Apple": 170, "Tesla": 250},
		market("Tesla", "Stocks"), market("Apple", "Stocks"))
	f.source.slow["Tesla"] = true

	start := time.Now()
	report, err := f.refresher.RunTick(ctx)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, TickReport{Assets: 2, Updated: 1, Failed: 1}, report)

	latest, err := f.snapshots.LatestAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Apple": 170}, latest)
}

func TestRunTickMissingQuote(t *testing.T) {
	f := newFixture(t, _wednesdayOpen, nil, market("Bitcoin", "Crypto"))

	report, err := f.refresher.RunTick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
}

func TestMarketHours(t *testing.T) {
	h := defaultHours(t)
	day := func(wd int, hh, mm int) time.Time {
		// June 16 2025 is a Monday
		return time.Date(2025, time.June, 16+wd, hh, mm, 0, 0, time.UTC)
	}

	assert.False(t, h.IsOpen(day(0, 13, 29)))
	assert.True(t, h.IsOpen(day(0, 13, 30)))
	assert.True(t, h.IsOpen(day(2, 17, 0)))
	assert.True(t, h.IsOpen(day(4, 20, 0)))
	assert.False(t, h.IsOpen(day(4, 20, 1)))
	assert.False(t, h.IsOpen(day(5, 15, 0)))
	assert.False(t, h.IsOpen(day(6, 15, 0)))

	// non-UTC clocks are converted first
	ny := time.FixedZone("EDT", -4*3600)
	assert.True(t, h.IsOpen(time.Date(2025, time.June, 16, 10, 0, 0, 0, ny)))

	_, err := NewMarketHours(config.MarketHoursConfig{Open: "20:00", Close: "13:30"})
	assert.Error(t, err)
	_, err = NewMarketHours(config.MarketHoursConfig{Open: "9am", Close: "13:30"})
	assert.Error(t, err)
}
