// Package main is the entrypoint for the push-worker Lambda function.
//
// The worker consumes PushMessages from the push queue, fans each one out
// to the user's registered devices through the push gateway, and prunes
// tokens the gateway reports as dead. Failed records are returned as SQS
// batch item failures so only they are redelivered.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/jackc/pgx/v5/pgxpool"

	"bubbletasks/internal/config"
	"bubbletasks/internal/db"
	"bubbletasks/internal/notify"
	"bubbletasks/internal/push"
	"bubbletasks/internal/types"
)

// queueMetrics is the telemetry slice the handler records directly.
type queueMetrics interface {
	RecordQueueLag(ctx context.Context, lag time.Duration)
}

// Handler processes SQS events for the push worker.
type Handler struct {
	channel *push.Channel
	metrics queueMetrics // nil disables telemetry
	logger  *slog.Logger
}

// Handle consumes one SQS batch. Each record is processed independently;
// failures are reported per-item so SQS only redelivers what actually
// failed.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		var msg types.PushMessage
		if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
			// A malformed body never becomes deliverable; drop it rather
			// than poison-pill the queue.
			h.logger.ErrorContext(ctx, "dropping undecodable push message",
				"message_id", record.MessageId,
				"error", err,
			)
			continue
		}

		if !msg.EnqueuedAt.IsZero() && h.metrics != nil {
			h.metrics.RecordQueueLag(ctx, time.Since(msg.EnqueuedAt))
		}

		if err := h.channel.Deliver(ctx, msg); err != nil {
			h.logger.ErrorContext(ctx, "push delivery failed",
				"message_id", record.MessageId,
				"user_id", msg.UserID,
				"task_id", msg.TaskID,
				"trace_id", msg.TraceID,
				"error", err,
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}

	return response, nil
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

	logger.Info("push-worker Lambda initializing (cold start)",
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
	metrics := notify.NewCloudWatchScanMetrics(cloudwatch.NewFromConfig(awsCfg), logger)

	gateway := push.NewGatewayClient(
		cfg.Push.GatewayURL,
		cfg.Push.GatewayAPIKey.Unmask(),
		push.RetryPolicy{
			MaxRetries: cfg.Push.MaxRetries,
			MinWait:    500 * time.Millisecond,
			MaxWait:    10 * time.Second,
		},
	)

	handler := &Handler{
		channel: push.NewChannel(gateway, db.NewDeviceTokenRepository(pool), logger,
			push.WithChannelMetrics(metrics)),
		metrics: metrics,
		logger:  logger,
	}

	logger.Info("push-worker Lambda initialized",
		"gateway_url", cfg.Push.GatewayURL,
	)

	lambda.Start(handler.Handle)
}
