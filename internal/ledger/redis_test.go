package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bubbletasks/internal/types"
)

type mockRedisClient struct {
	mock.Mock
}

func (m *mockRedisClient) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.BoolCmd)
}

func (m *mockRedisClient) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return args.Get(0).(*redis.IntCmd)
}

func TestRedisLedger_HasFired(t *testing.T) {
	client := new(mockRedisClient)
	l := NewRedisLedger(client, 0)

	client.On("Exists", mock.Anything, []string{"overdue:u1:t1:2024-06-01T10:00:00Z"}).
		Return(redis.NewIntResult(1, nil))

	fired, err := l.HasFired(context.Background(), "overdue:u1:t1:2024-06-01T10:00:00Z")
	require.NoError(t, err)
	assert.True(t, fired)
}

func TestRedisLedger_HasFired_Error(t *testing.T) {
	client := new(mockRedisClient)
	l := NewRedisLedger(client, 0)

	client.On("Exists", mock.Anything, mock.Anything).
		Return(redis.NewIntResult(0, errors.New("connection refused")))

	_, err := l.HasFired(context.Background(), "k")
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalLedger, appErr.Code)
}

func TestRedisLedger_MarkFired_UsesRetentionTTL(t *testing.T) {
	client := new(mockRedisClient)
	l := NewRedisLedger(client, 48*time.Hour)

	at := time.Date(2024, 6, 1, 10, 0, 30, 0, time.UTC)
	client.On("SetNX", mock.Anything, "reminder:u1:t1:15:2024-06-01T10:00:00Z",
		"2024-06-01T10:00:30Z", 48*time.Hour).
		Return(redis.NewBoolResult(true, nil))

	err := l.MarkFired(context.Background(), "reminder:u1:t1:15:2024-06-01T10:00:00Z", at)
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestRedisLedger_MarkFired_ExistingKeyIsNoOp(t *testing.T) {
	client := new(mockRedisClient)
	l := NewRedisLedger(client, 0)

	// SET NX returning false means the key was already there; not an error.
	client.On("SetNX", mock.Anything, mock.Anything, mock.Anything, DefaultRedisRetention).
		Return(redis.NewBoolResult(false, nil))

	err := l.MarkFired(context.Background(), "k", time.Now())
	require.NoError(t, err)
}
