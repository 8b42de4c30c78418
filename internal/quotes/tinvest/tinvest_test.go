package tinvest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/STTM-NSU/fintrack/internal/logger"
	investapi "github.com/russianinvestments/invest-api-go-sdk/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func TestPickFigi(t *testing.T) {
	instruments := []*investapi.InstrumentShort{
		{Ticker: "AAPL", Figi: "BBG-OTC", ApiTradeAvailableFlag: false},
		{Ticker: "AAPL-RM", Figi: "BBG-RM", ApiTradeAvailableFlag: true},
		{Ticker: "AAPL", Figi: "BBG000B9XRY4", ApiTradeAvailableFlag: true},
	}

	figi, err := pickFigi(instruments, "aapl")
	require.NoError(t, err)
	assert.Equal(t, "BBG000B9XRY4", figi)

	figi, err = pickFigi(instruments[:2], "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "BBG-RM", figi)

	_, err = pickFigi(instruments[:1], "AAPL")
	assert.ErrorIs(t, err, NotFoundError)

	_, err = pickFigi(nil, "AAPL")
	assert.ErrorIs(t, err, NotExistError)
}

func TestCloseOn(t *testing.T) {
	day := func(d int) *timestamppb.Timestamp {
		return timestamppb.New(time.Date(2025, time.May, d, 7, 0, 0, 0, time.UTC))
	}
	candles := []*investapi.HistoricCandle{
		{Time: day(2), Close: &investapi.Quotation{Units: 205, Nano: 500000000}},
		{Time: day(1), Close: &investapi.Quotation{Units: 210}},
		{Time: day(5), Close: &investapi.Quotation{Units: 199}},
	}

	price, ok := closeOn(candles, time.Date(2025, time.May, 4, 12, 0, 0, 0, time.UTC))
	assert.True(t, ok)
	assert.Equal(t, 205.5, price)

	_, ok = closeOn(candles, time.Date(2025, time.April, 30, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

type fakeAPI struct {
	mu      sync.Mutex
	finds   int
	block   chan struct{}
	prices  map[string]float64
	candles []*investapi.HistoricCandle
	from    time.Time
	to      time.Time
}

func (f *fakeAPI) wait() {
	if f.block != nil {
		<-f.block
	}
}

func (f *fakeAPI) find(ticker string) ([]*investapi.InstrumentShort, error) {
	f.mu.Lock()
	f.finds++
	f.mu.Unlock()
	return []*investapi.InstrumentShort{{Ticker: ticker, Figi: "FIGI-" + ticker, ApiTradeAvailableFlag: true}}, nil
}

func (f *fakeAPI) lastPrices(figi string) ([]*investapi.LastPrice, error) {
	f.wait()
	price, ok := f.prices[figi]
	if !ok {
		return nil, nil
	}
	units := int64(price)
	return []*investapi.LastPrice{{
		Figi:  figi,
		Price: &investapi.Quotation{Units: units, Nano: int32((price - float64(units)) * 1e9)},
	}}, nil
}

func (f *fakeAPI) dailyCandles(_ string, from, to time.Time) ([]*investapi.HistoricCandle, error) {
	f.wait()
	f.mu.Lock()
	f.from, f.to = from, to
	f.mu.Unlock()
	return f.candles, nil
}

func newFakeClient(f *fakeAPI) *Client {
	return newClient(f, f, logger.NewNop())
}

func TestLiveQuote(t *testing.T) {
	f := &fakeAPI{prices: map[string]float64{"FIGI-AAPL": 170.5}}
	c := newFakeClient(f)

	price, err := c.LiveQuote(context.Background(), " aapl ")
	require.NoError(t, err)
	assert.Equal(t, 170.5, price)

	_, err = c.LiveQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, f.finds)

	_, err = c.LiveQuote(context.Background(), "TSLA")
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestHistoricalQuote(t *testing.T) {
	f := &fakeAPI{candles: []*investapi.HistoricCandle{
		{Time: timestamppb.New(time.Date(2025, time.May, 2, 7, 0, 0, 0, time.UTC)), Close: &investapi.Quotation{Units: 205}},
		{Time: timestamppb.New(time.Date(2025, time.May, 6, 7, 0, 0, 0, time.UTC)), Close: &investapi.Quotation{Units: 199}},
	}}
	c := newFakeClient(f)
	date := time.Date(2025, time.May, 4, 12, 0, 0, 0, time.UTC)

	price, err := c.HistoricalQuote(context.Background(), "AAPL", date)
	require.NoError(t, err)
	assert.Equal(t, 205.0, price)
	assert.Equal(t, date.Add(-_rangeBefore), f.from)
	assert.Equal(t, date.Add(_rangeAfter), f.to)

	_, err = c.HistoricalQuote(context.Background(), "AAPL", time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestQuoteTimesOut(t *testing.T) {
	f := &fakeAPI{block: make(chan struct{}), prices: map[string]float64{"FIGI-AAPL": 1}}
	defer close(f.block)
	c := newFakeClient(f)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.LiveQuote(ctx, "AAPL")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	_, err = c.HistoricalQuote(ctx2, "AAPL", time.Now())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
