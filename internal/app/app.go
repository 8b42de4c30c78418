// Package app builds the service graph shared by the binaries.
package app

import (
	"context"
	"fmt"

	"github.com/STTM-NSU/fintrack/internal/backfill"
	"github.com/STTM-NSU/fintrack/internal/config"
	"github.com/STTM-NSU/fintrack/internal/logger"
	"github.com/STTM-NSU/fintrack/internal/portfolio"
	"github.com/STTM-NSU/fintrack/internal/postgres"
	"github.com/STTM-NSU/fintrack/internal/quotes"
	"github.com/STTM-NSU/fintrack/internal/quotes/coingecko"
	"github.com/STTM-NSU/fintrack/internal/quotes/symbols"
	"github.com/STTM-NSU/fintrack/internal/quotes/tinvest"
	"github.com/STTM-NSU/fintrack/internal/quotes/yahoo"
	"github.com/STTM-NSU/fintrack/internal/refresh"
	"github.com/STTM-NSU/fintrack/internal/storage/memory"
	"github.com/STTM-NSU/fintrack/internal/storage/pg"
	"github.com/russianinvestments/invest-api-go-sdk/investgo"
)

type App struct {
	Service   *portfolio.Service
	Refresher *refresh.Refresher
	Backfill  *backfill.Job

	closers []func() error
}

// Close releases connections opened by New.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func New(ctx context.Context, cfg config.Config, l *logger.ZapLogger) (*App, error) {
	a := &App{}

	stores, err := a.stores(ctx, cfg.Storage, l)
	if err != nil {
		a.Close()
		return nil, err
	}

	index, err := stocks(cfg.Quotes.StocksFile)
	if err != nil {
		a.Close()
		return nil, err
	}
	l.Infof("loaded %d stock symbols", index.Len())

	equity, err := a.equityProvider(ctx, cfg.Quotes, l)
	if err != nil {
		a.Close()
		return nil, err
	}
	crypto := coingecko.New(cfg.Quotes.CoinGecko, cfg.Backfill.CryptoDelay, l)
	source := quotes.NewRouter(crypto, equity, l)
	resolver := quotes.NewResolver(index)

	hours, err := refresh.NewMarketHours(cfg.Refresh.MarketHours)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Refresher = refresh.NewRefresher(stores.Positions, stores.Snapshots, source, resolver, hours, cfg.Refresh.RequestTimeout, l)
	a.Backfill = backfill.NewJob(stores.Positions, stores.References, source, resolver, l)
	a.Service = portfolio.NewService(stores, a.Refresher, a.Backfill, l)
	return a, nil
}

func (a *App) stores(ctx context.Context, cfg config.StorageConfig, l logger.Logger) (portfolio.Stores, error) {
	if cfg.Driver == config.Memory {
		l.Warnf("using in-memory storage, data is lost on exit")
		return portfolio.Stores{
			Positions:  memory.NewPositionStore(),
			Snapshots:  memory.NewSnapshotStore(),
			References: memory.NewReferenceCache(),
			History:    memory.NewHistoryStore(),
			Categories: memory.NewCategoryStore(),
			Lots:       memory.NewLotStore(),
		}, nil
	}

	pgConfig := postgres.NewConfigFromEnv().Setup()
	l.Debugf("trying to connect to db with: %s", pgConfig.Redacted())
	db, err := postgres.NewDB(ctx, pgConfig)
	if err != nil {
		return portfolio.Stores{}, fmt.Errorf("%w: can't connect to db", err)
	}
	a.closers = append(a.closers, db.Close)

	if err := postgres.Migrate(ctx, db); err != nil {
		return portfolio.Stores{}, fmt.Errorf("%w: can't migrate db", err)
	}

	return portfolio.Stores{
		Positions:  pg.NewPositionStore(db),
		Snapshots:  pg.NewSnapshotStore(db),
		References: pg.NewReferenceCache(db),
		History:    pg.NewHistoryStore(db),
		Categories: pg.NewCategoryStore(db),
		Lots:       pg.NewLotStore(db),
	}, nil
}

func (a *App) equityProvider(ctx context.Context, cfg config.QuotesConfig, l *logger.ZapLogger) (quotes.Provider, error) {
	if cfg.EquityProvider != config.TInvest {
		return yahoo.New(cfg.Yahoo, l), nil
	}

	investCfg, err := config.LoadTInvestConfig(cfg.TInvestConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: can't load invest cfg", err)
	}
	investClient, err := investgo.NewClient(ctx, investCfg, l)
	if err != nil {
		return nil, fmt.Errorf("%w: can't create invest client", err)
	}
	a.closers = append(a.closers, investClient.Stop)
	return tinvest.New(investClient, l), nil
}

func stocks(filename string) (*symbols.Index, error) {
	if filename == "" {
		return symbols.Default()
	}
	return symbols.FromFile(filename)
}
