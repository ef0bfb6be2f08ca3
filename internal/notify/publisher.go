// Package notify provides the SQS producer that hands fired notifications
// to the push worker, and the CloudWatch metrics sink for scan telemetry.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"bubbletasks/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// PushPublisher implements the scanner's Dispatcher interface by
// serializing PushMessages onto the push queue. Delivery to actual
// devices happens in the push worker; from the scanner's point of view a
// successful enqueue is a successful send.
type PushPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewPushPublisher creates a PushPublisher for the given queue.
func NewPushPublisher(client SQSSender, queueURL string, logger *slog.Logger) *PushPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &PushPublisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// SendNotification stamps the message with a trace id and enqueue time,
// then dispatches it to the push queue.
func (p *PushPublisher) SendNotification(ctx context.Context, msg types.PushMessage) error {
	if msg.TraceID == "" {
		msg.TraceID = uuid.New().String()
	}
	msg.EnqueuedAt = time.Now().UTC()

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: failed to marshal PushMessage: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(msg.Kind)),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamQueue,
			fmt.Sprintf("failed to enqueue push message to %s", p.queueURL), err)
	}

	p.logger.InfoContext(ctx, "push message enqueued",
		"queue_url", p.queueURL,
		"kind", string(msg.Kind),
		"user_id", msg.UserID,
		"task_id", msg.TaskID,
		"trace_id", msg.TraceID,
	)

	return nil
}
