// Package main is the entrypoint for the scan-tick Lambda function.
//
// The scanner is triggered on a one-minute EventBridge schedule. Each
// invocation lists every user's active tasks, evaluates reminder windows
// and overdue state, and enqueues fired notifications for the push worker.
// Idempotency comes from the notification ledger, so overlapping or
// replayed invocations are safe.
//
// This file handles dependency wiring (cold start) and delegates all
// business logic to the internal/schedule package.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
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
	"bubbletasks/internal/schedule"
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

	logger.Info("scan-tick Lambda initializing (cold start)",
		"environment", cfg.Environment,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.URL.Unmask())
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}

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

	// The Redis ledger is opt-in; the Postgres ledger is the durable
	// default.
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

	handler := func(ctx context.Context, event events.CloudWatchEvent) error {
		_, err := scanner.Scan(ctx, time.Now().UTC())
		return err
	}

	logger.Info("scan-tick Lambda initialized",
		"push_queue", cfg.AWS.PushQueueURL,
		"concurrency", cfg.Scan.Concurrency,
	)

	// Local mode: run a single tick instead of starting the Lambda runtime.
	if cfg.Environment == "local" {
		if err := handler(ctx, events.CloudWatchEvent{}); err != nil {
			logger.Error("scan tick failed", "error", err)
			os.Exit(1)
		}
		return
	}

	lambda.Start(handler)
}
