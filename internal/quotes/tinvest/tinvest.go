// Package tinvest prices equities through the T-Invest broker API. It is an
// alternative to the yahoo provider for accounts that have a token.
package tinvest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/STTM-NSU/fintrack/internal/logger"
	"github.com/russianinvestments/invest-api-go-sdk/investgo"
	investapi "github.com/russianinvestments/invest-api-go-sdk/proto"
	"go.uber.org/ratelimit"
)

var (
	NotExistError = errors.New("instrument doesn't exist")
	NotFoundError = errors.New("instrument not tradable through api")
	ErrNoPrice    = errors.New("t-invest: no price")
)

const (
	_rangeBefore = 5 * 24 * time.Hour
	_rangeAfter  = 2 * 24 * time.Hour
)

// instruments and marketData are the SDK calls the client needs. Neither
// takes a context, so calls are bounded by call().
type instruments interface {
	find(ticker string) ([]*investapi.InstrumentShort, error)
}

type marketData interface {
	lastPrices(figi string) ([]*investapi.LastPrice, error)
	dailyCandles(figi string, from, to time.Time) ([]*investapi.HistoricCandle, error)
}

type sdkInstruments struct {
	c *investgo.InstrumentsServiceClient
}

func (s sdkInstruments) find(ticker string) ([]*investapi.InstrumentShort, error) {
	resp, err := s.c.FindInstrument(ticker)
	if err != nil {
		return nil, err
	}
	return resp.GetInstruments(), nil
}

type sdkMarketData struct {
	c *investgo.MarketDataServiceClient
}

func (s sdkMarketData) lastPrices(figi string) ([]*investapi.LastPrice, error) {
	resp, err := s.c.GetLastPrices([]string{figi})
	if err != nil {
		return nil, err
	}
	return resp.GetLastPrices(), nil
}

func (s sdkMarketData) dailyCandles(figi string, from, to time.Time) ([]*investapi.HistoricCandle, error) {
	resp, err := s.c.GetCandles(figi, investapi.CandleInterval_CANDLE_INTERVAL_DAY, from, to, 0, 0)
	if err != nil {
		return nil, err
	}
	return resp.GetCandles(), nil
}

type Client struct {
	instr instruments
	md    marketData

	instrLimiter ratelimit.Limiter
	mdLimiter    ratelimit.Limiter // 600 T/M, we stay below

	logger logger.Logger

	mu    sync.Mutex
	figis map[string]string // ticker -> figi
}

func New(c *investgo.Client, logger logger.Logger) *Client {
	return newClient(
		sdkInstruments{c: c.NewInstrumentsServiceClient()},
		sdkMarketData{c: c.NewMarketDataServiceClient()},
		logger,
	)
}

func newClient(instr instruments, md marketData, logger logger.Logger) *Client {
	return &Client{
		instr:        instr,
		md:           md,
		instrLimiter: ratelimit.New(200, ratelimit.Per(1*time.Minute)),
		mdLimiter:    ratelimit.New(500, ratelimit.Per(1*time.Minute)),
		logger:       logger,
		figis:        make(map[string]string),
	}
}

// call runs fn in its own goroutine and gives up when ctx is done. The
// abandoned call finishes in the background and its result is dropped.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}

func (c *Client) figi(ctx context.Context, ticker string) (string, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	c.mu.Lock()
	figi, ok := c.figis[ticker]
	c.mu.Unlock()
	if ok {
		return figi, nil
	}

	found, err := call(ctx, func() ([]*investapi.InstrumentShort, error) {
		c.instrLimiter.Take()
		return c.instr.find(ticker)
	})
	if err != nil {
		return "", fmt.Errorf("%w: can't find instrument %s", err, ticker)
	}

	figi, err = pickFigi(found, ticker)
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, ticker)
	}

	c.mu.Lock()
	c.figis[ticker] = figi
	c.mu.Unlock()
	return figi, nil
}

// pickFigi prefers an exact ticker match among instruments tradable through
// the api and falls back to the first tradable one.
func pickFigi(instruments []*investapi.InstrumentShort, ticker string) (string, error) {
	if len(instruments) == 0 {
		return "", NotExistError
	}
	fallback := ""
	for _, i := range instruments {
		if !i.GetApiTradeAvailableFlag() || i.GetFigi() == "" {
			continue
		}
		if strings.EqualFold(i.GetTicker(), ticker) {
			return i.GetFigi(), nil
		}
		if fallback == "" {
			fallback = i.GetFigi()
		}
	}
	if fallback == "" {
		return "", NotFoundError
	}
	return fallback, nil
}

func (c *Client) LiveQuote(ctx context.Context, ticker string) (float64, error) {
	figi, err := c.figi(ctx, ticker)
	if err != nil {
		return 0, err
	}

	prices, err := call(ctx, func() ([]*investapi.LastPrice, error) {
		c.mdLimiter.Take()
		return c.md.lastPrices(figi)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: can't get last price", err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("%w for instrument %s", ErrNoPrice, figi)
	}

	return prices[0].GetPrice().ToFloat(), nil
}

func (c *Client) HistoricalQuote(ctx context.Context, ticker string, date time.Time) (float64, error) {
	figi, err := c.figi(ctx, ticker)
	if err != nil {
		return 0, err
	}

	candles, err := call(ctx, func() ([]*investapi.HistoricCandle, error) {
		c.mdLimiter.Take()
		return c.md.dailyCandles(figi, date.Add(-_rangeBefore), date.Add(_rangeAfter))
	})
	if err != nil {
		return 0, fmt.Errorf("%w: can't get candles from api", err)
	}

	price, ok := closeOn(candles, date)
	if !ok {
		return 0, fmt.Errorf("%w for instrument %s on %s", ErrNoPrice, figi, date.Format(time.DateOnly))
	}
	return price, nil
}

// closeOn picks the close of the latest candle not after date.
func closeOn(candles []*investapi.HistoricCandle, date time.Time) (float64, bool) {
	var (
		best  float64
		found bool
		last  time.Time
	)
	for _, candle := range candles {
		ts := candle.GetTime().AsTime()
		if ts.After(date) || (found && ts.Before(last)) {
			continue
		}
		best, last, found = candle.GetClose().ToFloat(), ts, true
	}
	return best, found
}
