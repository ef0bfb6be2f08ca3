// Package main is the entrypoint for the maintenance Lambda function.
//
// Maintenance runs on a nightly EventBridge schedule and purges expired
// notification-ledger entries, archiving each batch to cold storage before
// deletion. With no archive bucket configured, expired entries are deleted
// directly.
package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"

	"bubbletasks/internal/config"
	"bubbletasks/internal/db"
	"bubbletasks/internal/schedule"
)

// s3API is the subset of the S3 SDK client the archiver uses.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// s3Archiver implements schedule.Archiver over an S3 bucket.
type s3Archiver struct {
	client s3API
	bucket string
}

func (a *s3Archiver) UploadArchive(ctx context.Context, key string, data []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(data),
		ContentType:     aws.String("application/jsonl"),
		ContentEncoding: aws.String("gzip"),
	})
	return err
}

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

	logger.Info("maintenance Lambda initializing (cold start)",
		"environment", cfg.Environment,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.URL.Unmask())
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}

	var archiver schedule.Archiver
	if cfg.AWS.ArchiveBucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			logger.Error("failed to load AWS SDK config", "error", err)
			os.Exit(1)
		}
		s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
				o.UsePathStyle = true
			}
		})
		archiver = &s3Archiver{client: s3Client, bucket: cfg.AWS.ArchiveBucket}
		logger.Info("ledger archiving enabled", "bucket", cfg.AWS.ArchiveBucket)
	}

	svc := schedule.NewLedgerCleanupService(
		db.NewLedgerRepository(pool, cfg.Scan.LedgerRetention),
		archiver,
		logger,
	)

	handler := func(ctx context.Context, event events.CloudWatchEvent) error {
		deleted, err := svc.PurgeExpired(ctx, time.Now().UTC(), cfg.Scan.CleanupBatch)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "ledger maintenance complete", "deleted", deleted)
		return nil
	}

	if cfg.Environment == "local" {
		if err := handler(ctx, events.CloudWatchEvent{}); err != nil {
			logger.Error("maintenance run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	lambda.Start(handler)
}
