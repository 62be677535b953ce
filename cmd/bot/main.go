// Command bot runs the periodic market scanner against the KIS brokerage.
// It loads the watchlist and schedule from a YAML config and logs every
// signal and failure of each scan pass.
//
// Usage:
//
//	bot --config config.yaml
//
// Required environment variables:
//
//	KIS_APP_KEY, KIS_APP_SECRET
//	KIS_ACCOUNT_CANO, KIS_ACCOUNT_ACNT_PRDT_CD
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"kisquant/config"
	"kisquant/internal"
	"kisquant/internal/broker"
	"kisquant/internal/domain"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	creds := broker.Credentials{
		AppKey:             os.Getenv("KIS_APP_KEY"),
		AppSecret:          os.Getenv("KIS_APP_SECRET"),
		AccountNo:          os.Getenv("KIS_ACCOUNT_CANO"),
		AccountProductCode: os.Getenv("KIS_ACCOUNT_ACNT_PRDT_CD"),
	}

	baseURL := broker.BaseURLVirtual
	if cfg.Environment == "real" {
		baseURL = broker.BaseURLReal
	}

	client, err := broker.NewClient(logger, creds, broker.Config{
		BaseURL:           baseURL,
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	})
	if err != nil {
		logger.Fatal("failed to create broker client", zap.Error(err))
	}

	engine, err := internal.NewEngine(logger, cfg, client)
	if err != nil {
		logger.Fatal("failed to assemble engine", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := engine.Warmup(ctx); err != nil {
		logger.Warn("eager authentication failed, will retry on first scan", zap.Error(err))
	}

	// one pass right away so a restart does not wait for the next cron slot
	logScan(logger, engine.Scan(ctx, cfg.Symbols))

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.ScanSchedule, func() {
		logScan(logger, engine.RunScheduledScan(ctx, cfg.Symbols))
	})
	if err != nil {
		logger.Fatal("invalid scan schedule", zap.String("schedule", cfg.ScanSchedule), zap.Error(err))
	}

	scheduler.Start()
	logger.Info("scanner running",
		zap.Strings("symbols", cfg.Symbols),
		zap.String("schedule", cfg.ScanSchedule),
		zap.String("environment", cfg.Environment))

	<-ctx.Done()
	<-scheduler.Stop().Done()
	logger.Info("scanner stopped")
}

func logScan(logger *zap.Logger, report domain.ScanReport) {
	for _, sig := range report.Signals {
		logger.Info("signal",
			zap.String("symbol", sig.Symbol),
			zap.String("action", string(sig.Action)),
			zap.String("price", sig.Price.String()),
			zap.String("reason", sig.Reason))
	}
	for _, fail := range report.Failures {
		logger.Warn("symbol failed",
			zap.String("symbol", fail.Symbol),
			zap.Error(fail.Err))
	}
}
