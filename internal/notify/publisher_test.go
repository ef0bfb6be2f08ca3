package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bubbletasks/internal/types"
)

type mockSQSSender struct {
	mock.Mock
}

func (m *mockSQSSender) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*sqs.SendMessageOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPushPublisher_SendNotification(t *testing.T) {
	client := new(mockSQSSender)
	pub := NewPushPublisher(client, "https://sqs.test/push-queue", discardLogger())

	var captured *sqs.SendMessageInput
	client.On("SendMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*sqs.SendMessageInput)
		}).
		Return(&sqs.SendMessageOutput{}, nil)

	msg := types.PushMessage{
		Kind:          types.NotifyReminder,
		UserID:        "u1",
		TaskID:        "t1",
		Title:         "pay rent",
		MinutesBefore: 15,
		DueDate:       time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, pub.SendNotification(context.Background(), msg))

	require.NotNil(t, captured)
	assert.Equal(t, "https://sqs.test/push-queue", *captured.QueueUrl)
	assert.Equal(t, string(types.NotifyReminder), *captured.MessageAttributes["kind"].StringValue)

	var sent types.PushMessage
	require.NoError(t, json.Unmarshal([]byte(*captured.MessageBody), &sent))
	assert.Equal(t, "u1", sent.UserID)
	assert.Equal(t, 15, sent.MinutesBefore)
	assert.NotEmpty(t, sent.TraceID, "trace id is stamped when absent")
	assert.False(t, sent.EnqueuedAt.IsZero())
}

func TestPushPublisher_PreservesCallerTraceID(t *testing.T) {
	client := new(mockSQSSender)
	pub := NewPushPublisher(client, "https://sqs.test/push-queue", discardLogger())

	var captured *sqs.SendMessageInput
	client.On("SendMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*sqs.SendMessageInput)
		}).
		Return(&sqs.SendMessageOutput{}, nil)

	msg := types.PushMessage{Kind: types.NotifyOverdue, UserID: "u1", TaskID: "t1", TraceID: "trace-abc"}
	require.NoError(t, pub.SendNotification(context.Background(), msg))

	var sent types.PushMessage
	require.NoError(t, json.Unmarshal([]byte(*captured.MessageBody), &sent))
	assert.Equal(t, "trace-abc", sent.TraceID)
}

func TestPushPublisher_SendFailure(t *testing.T) {
	client := new(mockSQSSender)
	pub := NewPushPublisher(client, "https://sqs.test/push-queue", discardLogger())

	client.On("SendMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New("queue unavailable"))

	err := pub.SendNotification(context.Background(), types.PushMessage{Kind: types.NotifyReminder})
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamQueue, appErr.Code)
}
