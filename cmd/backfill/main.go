package main

import (
	"cmp"
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/STTM-NSU/fintrack/internal/app"
	"github.com/STTM-NSU/fintrack/internal/config"
	"github.com/STTM-NSU/fintrack/internal/logger"
	"github.com/joho/godotenv"
)

const (
	_cfgFilePath = "./configs/fintrack.yaml"
)

// Fills the reference price cache once and exits.
func main() {
	envErr := godotenv.Load()

	cfgPath := cmp.Or(os.Getenv("FINTRACK_CONFIG"), _cfgFilePath)
	cfg, err := config.Load(cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		log.Fatalf("%s: can't load config %s", err, cfgPath)
	}

	zapLogger, loggerSync, err := logger.NewZapLogger(logger.Info)
	if err != nil {
		log.Fatalf("%s: can't init logger", err)
	}
	defer loggerSync()

	if envErr != nil {
		zapLogger.Warnf("can't detect .env file")
	}
	if cfg.Storage.Driver == config.Memory {
		zapLogger.Fatalf("backfill into in-memory storage is pointless")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatalf("%s: can't build app", err)
	}
	defer a.Close()

	report, err := a.Service.RunHistoricalBackfill(ctx)
	if err != nil {
		zapLogger.Errorf("%s: backfill failed", err)
		return
	}
	zapLogger.Infof("backfill done: %d assets, %d fetched, %d cached, %d skipped, %d unresolved, %d failed",
		report.Assets, report.Fetched, report.Cached, report.Skipped, report.Unresolved, report.Failed)
}
