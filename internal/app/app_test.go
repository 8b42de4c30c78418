package app

import (
	"context"
	"testing"

	"github.com/STTM-NSU/fintrack/internal/config"
	"github.com/STTM-NSU/fintrack/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInMemory(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Driver = config.Memory

	a, err := New(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Service)
	assert.Equal(t, "price-refresh", a.Refresher.Name())
	assert.Equal(t, "historical-backfill", a.Backfill.Name())

	positions, err := a.Service.Positions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestNewBadStocksFile(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Driver = config.Memory
	cfg.Quotes.StocksFile = "./testdata/missing.json"

	_, err := New(context.Background(), cfg, logger.NewNop())
	assert.Error(t, err)
}
