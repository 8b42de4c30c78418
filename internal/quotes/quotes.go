// Package quotes turns asset names into prices. Provider errors never leave
// this package: callers only see whether a price is known.
package quotes

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/STTM-NSU/fintrack/internal/logger"
	"github.com/STTM-NSU/fintrack/internal/model"
)

var ErrUnsupportedClass = errors.New("asset class is not quoted")

// Source is what the refresh and backfill jobs price assets through. The key
// is an external lookup key produced by a Resolver.
type Source interface {
	LiveQuote(ctx context.Context, key string, class model.AssetClass) (float64, bool)
	HistoricalQuote(ctx context.Context, key string, class model.AssetClass, date time.Time) (float64, bool)
}

// Provider is one upstream price API.
type Provider interface {
	LiveQuote(ctx context.Context, key string) (float64, error)
	HistoricalQuote(ctx context.Context, key string, date time.Time) (float64, error)
}

type SymbolIndex interface {
	Lookup(name string) (string, error)
}

// Resolver maps free-text asset names to provider keys.
type Resolver struct {
	symbols SymbolIndex
}

func NewResolver(symbols SymbolIndex) *Resolver {
	return &Resolver{symbols: symbols}
}

// Key returns the lower-cased name for crypto (it doubles as the CoinGecko
// coin id) and the ticker from the symbol index for equities.
func (r *Resolver) Key(assetName string, class model.AssetClass) (string, error) {
	switch class {
	case model.Crypto:
		return strings.ToLower(strings.TrimSpace(assetName)), nil
	case model.Equity:
		return r.symbols.Lookup(assetName)
	}
	return "", ErrUnsupportedClass
}

// Router dispatches quotes to the provider of the asset class.
type Router struct {
	providers map[model.AssetClass]Provider
	logger    logger.Logger
}

func NewRouter(crypto, equity Provider, logger logger.Logger) *Router {
	return &Router{
		providers: map[model.AssetClass]Provider{
			model.Crypto: crypto,
			model.Equity: equity,
		},
		logger: logger,
	}
}

func (r *Router) LiveQuote(ctx context.Context, key string, class model.AssetClass) (float64, bool) {
	p, ok := r.providers[class]
	if !ok || p == nil {
		return 0, false
	}
	price, err := p.LiveQuote(ctx, key)
	if err != nil {
		r.logger.Warnf("%s: can't get live quote for %s (%s)", err, key, class)
		return 0, false
	}
	return price, price > 0
}

func (r *Router) HistoricalQuote(ctx context.Context, key string, class model.AssetClass, date time.Time) (float64, bool) {
	p, ok := r.providers[class]
	if !ok || p == nil {
		return 0, false
	}
	price, err := p.HistoricalQuote(ctx, key, date)
	if err != nil {
		r.logger.Warnf("%s: can't get historical quote for %s (%s) on %s", err, key, class, date.Format(time.DateOnly))
		return 0, false
	}
	return price, price > 0
}
