// Package coingecko prices crypto assets through the public CoinGecko API.
package coingecko

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/STTM-NSU/fintrack/internal/config"
	"github.com/STTM-NSU/fintrack/internal/logger"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

const (
	_simplePriceURL = "/simple/price"
	_historyURL     = "/coins/{id}/history"

	_currency   = "usd"
	_dateLayout = "02-01-2006"
)

var ErrNoPrice = errors.New("coingecko: no price")

type historyResponse struct {
	MarketData struct {
		CurrentPrice map[string]float64 `json:"current_price"`
	} `json:"market_data"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Status struct {
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
}

func (e *errorResponse) message() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Status.ErrorMessage
}

type Client struct {
	c           *resty.Client
	rateLimiter ratelimit.Limiter // free tier allows a few dozen calls per minute

	logger logger.Logger
}

// New creates a client that waits at least delay between calls. The limiter
// keeps no slack, so calls after an idle stretch are spaced too.
func New(cfg config.ProviderConfig, delay time.Duration, logger logger.Logger) *Client {
	client := resty.New().
		SetLogger(logger).
		SetBaseURL(cfg.Address).
		SetTimeout(cfg.Timeout)

	return &Client{
		c:           client,
		rateLimiter: ratelimit.New(1, ratelimit.Per(delay), ratelimit.WithoutSlack),
		logger:      logger,
	}
}

// curl "https://api.coingecko.com/api/v3/simple/price?ids=bitcoin&vs_currencies=usd"
func (c *Client) LiveQuote(ctx context.Context, id string) (float64, error) {
	var result map[string]map[string]float64

	c.rateLimiter.Take()
	req := c.c.R().
		SetQueryParams(map[string]string{
			"ids":           id,
			"vs_currencies": _currency,
		}).
		SetResult(&result).
		SetError(&errorResponse{}).
		SetContext(ctx)

	resp, err := req.Get(_simplePriceURL)
	if err != nil {
		return 0, fmt.Errorf("%w: can't send request for price of %s", err, id)
	}
	defer resp.Body.Close()

	c.logger.Debugf("got response %s status: %s, %s", resp.Request.URL, resp.Status(), resp.Duration())

	if resp.IsError() {
		return 0, fmt.Errorf("%s: coingecko price request error", resp.Error().(*errorResponse).message())
	}
	if !resp.IsSuccess() {
		return 0, fmt.Errorf("coingecko price unexpected request error: %s", resp.Status())
	}

	price, ok := result[id][_currency]
	if !ok || price <= 0 {
		return 0, fmt.Errorf("%w for %s", ErrNoPrice, id)
	}
	return price, nil
}

// curl "https://api.coingecko.com/api/v3/coins/bitcoin/history?date=30-12-2024"
func (c *Client) HistoricalQuote(ctx context.Context, id string, date time.Time) (float64, error) {
	c.rateLimiter.Take()
	req := c.c.R().
		SetPathParam("id", id).
		SetQueryParam("date", date.UTC().Format(_dateLayout)).
		SetResult(&historyResponse{}).
		SetError(&errorResponse{}).
		SetContext(ctx)

	resp, err := req.Get(_historyURL)
	if err != nil {
		return 0, fmt.Errorf("%w: can't send request for history of %s", err, id)
	}
	defer resp.Body.Close()

	c.logger.Debugf("got response %s status: %s, %s", resp.Request.URL, resp.Status(), resp.Duration())

	if resp.IsError() {
		return 0, fmt.Errorf("%s: coingecko history request error", resp.Error().(*errorResponse).message())
	}
	if !resp.IsSuccess() {
		return 0, fmt.Errorf("coingecko history unexpected request error: %s", resp.Status())
	}

	price, ok := resp.Result().(*historyResponse).MarketData.CurrentPrice[_currency]
	if !ok || price <= 0 {
		return 0, fmt.Errorf("%w for %s on %s", ErrNoPrice, id, date.Format(time.DateOnly))
	}
	return price, nil
}
