// Package main is the entrypoint for the ops API service.
//
// The ops API is a long-running internal HTTP service exposing health
// checks, a manual scan trigger, and per-user task inspection. It shares
// the scanner wiring with the scan-tick Lambda so a manual scan behaves
// exactly like a scheduled tick.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"bubbletasks/internal/config"
	"bubbletasks/internal/db"
	"bubbletasks/internal/ledger"
	"bubbletasks/internal/notify"
	"bubbletasks/internal/ops"
	"bubbletasks/internal/schedule"
	"bubbletasks/internal/types"
)

func parseLogLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("ops API initializing",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.URL.Unmask())
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})
	cwClient := cloudwatch.NewFromConfig(awsCfg)

	store := db.NewDualTaskStore(
		db.NewTaskRepository(pool),
		db.NewLegacyTaskRepository(pool),
		logger,
	)

	var scanLedger schedule.Ledger = db.NewLedgerRepository(pool, cfg.Scan.LedgerRetention)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password.Unmask(),
			DB:       cfg.Redis.DB,
		})
		scanLedger = ledger.NewRedisLedger(rdb, cfg.Scan.LedgerRetention)
		logger.Info("using redis ledger", "addr", cfg.Redis.Addr)
	}

	scanner := schedule.NewScanner(schedule.ScannerConfig{
		Store:        store,
		Ledger:       scanLedger,
		Dispatcher:   notify.NewPushPublisher(sqsClient, cfg.AWS.PushQueueURL, logger),
		Metrics:      notify.NewCloudWatchScanMetrics(cwClient, logger),
		DeepLinkBase: cfg.Scan.DeepLinkBase,
		Concurrency:  cfg.Scan.Concurrency,
		Logger:       logger,
	})

	handler := ops.NewHandler(ops.HandlerConfig{
		Scanner: scanner,
		Tasks:   store,
		Pinger:  pool,
		Clock:   types.RealClock{},
		Logger:  logger,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("ops API listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logger.Error("server failed", "error", err)
		os.Exit(1)
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
