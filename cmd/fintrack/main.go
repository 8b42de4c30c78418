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
	"github.com/STTM-NSU/fintrack/internal/scheduler"
	"github.com/STTM-NSU/fintrack/internal/server"
	"github.com/joho/godotenv"
)

const (
	_cfgFilePath = "./configs/fintrack.yaml"
)

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

	level, _ := logger.ParseLevel(cfg.LogLevel)
	zapLogger, loggerSync, err := logger.NewZapLogger(level)
	if err != nil {
		log.Fatalf("%s: can't init logger", err)
	}
	defer loggerSync()

	if envErr != nil {
		zapLogger.Warnf("can't detect .env file")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatalf("%s: can't build app", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			zapLogger.Errorf("%s: can't close app", err)
		}
	}()

	sched := scheduler.New(zapLogger)
	if err := sched.AddJob(scheduler.Every(cfg.Refresh.Interval), a.Refresher); err != nil {
		zapLogger.Fatalf("%s: can't schedule price refresh", err)
	}
	if err := sched.AddJob(scheduler.Every(cfg.Backfill.Interval), a.Backfill); err != nil {
		zapLogger.Fatalf("%s: can't schedule backfill", err)
	}
	sched.Start(ctx)
	defer sched.Stop()

	go func() {
		if err := sched.RunNow(ctx, a.Backfill); err != nil {
			zapLogger.Errorf("%s: startup backfill failed", err)
		}
	}()

	srv := server.NewHTTPServer(ctx, cfg.HTTP.Port, server.NewRouter(a.Service, zapLogger))
	zapLogger.Infof("listening on :%s", cfg.HTTP.Port)
	if err := srv.Run(ctx); err != nil {
		zapLogger.Errorf("%s: http server stopped", err)
	}
}
