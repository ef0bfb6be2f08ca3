package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"bubbletasks/internal/types"
)

// MetricNamespace is the CloudWatch namespace for scheduler telemetry.
const MetricNamespace = "BubbleTasks/Scheduler"

// Metric and dimension names.
const (
	MetricNotificationsFired = "NotificationsFired"
	MetricScanDuration       = "ScanDuration"
	MetricPushQueueLag       = "PushQueueLag"
	MetricPrunedTokens       = "PrunedTokens"
	DimKind                  = "Kind"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchScanMetrics implements the scanner's ScanMetrics interface by
// emitting to CloudWatch. Metric failures are logged and swallowed;
// telemetry must never fail a scan.
type CloudWatchScanMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchScanMetrics creates a metrics sink publishing to the
// scheduler namespace.
func NewCloudWatchScanMetrics(client CloudWatchClient, logger *slog.Logger) *CloudWatchScanMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchScanMetrics{
		client:    client,
		namespace: MetricNamespace,
		logger:    logger,
	}
}

// RecordFired emits a NotificationsFired count with the Kind dimension.
func (m *CloudWatchScanMetrics) RecordFired(ctx context.Context, kind types.NotificationKind) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricNotificationsFired),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  aws.String(DimKind),
						Value: aws.String(string(kind)),
					},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to record fired metric",
			"error", err,
			"kind", string(kind),
		)
	}
}

// RecordScanDuration emits the wall-clock time of one scan tick in
// milliseconds.
func (m *CloudWatchScanMetrics) RecordScanDuration(ctx context.Context, d time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricScanDuration),
				Value:      aws.Float64(float64(d.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to record scan duration metric",
			"error", err,
			"duration_ms", d.Milliseconds(),
		)
	}
}

// RecordQueueLag emits the time between a message's enqueue and the start
// of its processing in the push worker.
func (m *CloudWatchScanMetrics) RecordQueueLag(ctx context.Context, lag time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricPushQueueLag),
				Value:      aws.Float64(float64(lag.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to record queue lag metric",
			"error", err,
			"lag_ms", lag.Milliseconds(),
		)
	}
}

// RecordPrunedTokens emits how many dead device tokens a delivery pruned.
func (m *CloudWatchScanMetrics) RecordPrunedTokens(ctx context.Context, count int) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricPrunedTokens),
				Value:      aws.Float64(float64(count)),
				Unit:       cwtypes.StandardUnitCount,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to record pruned tokens metric",
			"error", err,
			"count", count,
		)
	}
}
