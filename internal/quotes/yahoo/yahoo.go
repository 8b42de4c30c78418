// Package yahoo prices equities through the Yahoo Finance v8 chart API.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/STTM-NSU/fintrack/internal/config"
	"github.com/STTM-NSU/fintrack/internal/logger"
	"resty.dev/v3"
)

const (
	_chartURL = "/v8/finance/chart/{symbol}"

	_userAgent = "fintrack/1.0"

	// a historical lookup asks for daily bars around the date and takes the
	// last one not after it, so weekends and holidays resolve to the
	// previous session
	_rangeBefore = 5 * 24 * time.Hour
	_rangeAfter  = 2 * 24 * time.Hour
)

var ErrNoResult = errors.New("yahoo: no result")

type chartResult struct {
	Meta struct {
		RegularMarketPrice float64 `json:"regularMarketPrice"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type bar struct {
	ts    time.Time
	close float64
}

// bars returns the non-empty daily closes in chronological order.
func (r chartResult) bars() []bar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	closes := r.Indicators.Quote[0].Close
	out := make([]bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(closes) || closes[i] == nil || *closes[i] <= 0 {
			continue
		}
		out = append(out, bar{ts: time.Unix(ts, 0).UTC(), close: *closes[i]})
	}
	return out
}

type Client struct {
	c *resty.Client

	logger logger.Logger
}

func New(cfg config.ProviderConfig, logger logger.Logger) *Client {
	client := resty.New().
		SetLogger(logger).
		SetBaseURL(cfg.Address).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", _userAgent)

	return &Client{
		c:      client,
		logger: logger,
	}
}

func (c *Client) chart(ctx context.Context, symbol string, params map[string]string) (chartResult, error) {
	req := c.c.R().
		SetPathParam("symbol", strings.ToUpper(strings.TrimSpace(symbol))).
		SetQueryParams(params).
		SetResult(&chartResponse{}).
		SetError(&chartResponse{}).
		SetContext(ctx)

	resp, err := req.Get(_chartURL)
	if err != nil {
		return chartResult{}, fmt.Errorf("%w: can't send chart request for %s", err, symbol)
	}
	defer resp.Body.Close()

	c.logger.Debugf("got response %s status: %s, %s", resp.Request.URL, resp.Status(), resp.Duration())

	if resp.IsError() {
		if e := resp.Error().(*chartResponse).Chart.Error; e != nil {
			return chartResult{}, fmt.Errorf("%s: yahoo chart request error", e.Description)
		}
		return chartResult{}, fmt.Errorf("yahoo chart request error: %s", resp.Status())
	}
	if !resp.IsSuccess() {
		return chartResult{}, fmt.Errorf("yahoo chart unexpected request error: %s", resp.Status())
	}

	result := resp.Result().(*chartResponse).Chart.Result
	if len(result) == 0 {
		return chartResult{}, fmt.Errorf("%w for %s", ErrNoResult, symbol)
	}
	return result[0], nil
}

// curl "https://query2.finance.yahoo.com/v8/finance/chart/AAPL?interval=1d&range=5d"
func (c *Client) LiveQuote(ctx context.Context, symbol string) (float64, error) {
	r, err := c.chart(ctx, symbol, map[string]string{
		"interval": "1d",
		"range":    "5d",
	})
	if err != nil {
		return 0, err
	}
	if price := r.Meta.RegularMarketPrice; price > 0 {
		return price, nil
	}
	bars := r.bars()
	if len(bars) == 0 {
		return 0, fmt.Errorf("%w for %s", ErrNoResult, symbol)
	}
	return bars[len(bars)-1].close, nil
}

// curl "https://query2.finance.yahoo.com/v8/finance/chart/AAPL?interval=1d&period1=1714521600&period2=1715126400"
func (c *Client) HistoricalQuote(ctx context.Context, symbol string, date time.Time) (float64, error) {
	r, err := c.chart(ctx, symbol, map[string]string{
		"interval": "1d",
		"period1":  strconv.FormatInt(date.Add(-_rangeBefore).Unix(), 10),
		"period2":  strconv.FormatInt(date.Add(_rangeAfter).Unix(), 10),
	})
	if err != nil {
		return 0, err
	}

	price, ok := closeOn(r.bars(), date)
	if !ok {
		return 0, fmt.Errorf("%w for %s on %s", ErrNoResult, symbol, date.Format(time.DateOnly))
	}
	return price, nil
}

// closeOn picks the latest bar not after date.
func closeOn(bars []bar, date time.Time) (float64, bool) {
	for i := len(bars) - 1; i >= 0; i-- {
		if !bars[i].ts.After(date) {
			return bars[i].close, true
		}
	}
	return 0, false
}
