package push

import (
	"context"
	"fmt"
	"log/slog"

	"bubbletasks/internal/types"
)

// TokenStore is the device-token access the channel needs.
type TokenStore interface {
	ListByUser(ctx context.Context, userID string) ([]types.DeviceToken, error)
	DeleteTokens(ctx context.Context, tokens []string) (int, error)
}

// ChannelMetrics receives delivery telemetry.
type ChannelMetrics interface {
	RecordPrunedTokens(ctx context.Context, count int)
}

// Channel fans one logical notification out to all of a user's devices
// and prunes tokens the gateway reports as dead.
type Channel struct {
	gateway *GatewayClient
	tokens  TokenStore
	metrics ChannelMetrics // nil disables telemetry
	logger  *slog.Logger
}

// ChannelOption is a functional option for configuring a Channel.
type ChannelOption func(*Channel)

// WithChannelMetrics attaches a telemetry sink to the channel.
func WithChannelMetrics(m ChannelMetrics) ChannelOption {
	return func(c *Channel) {
		c.metrics = m
	}
}

// NewChannel creates a push delivery channel.
func NewChannel(gateway *GatewayClient, tokens TokenStore, logger *slog.Logger, opts ...ChannelOption) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Channel{
		gateway: gateway,
		tokens:  tokens,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Deliver sends the message to every registered device for the user. A
// user with no devices is a successful no-op; losing the race against an
// app uninstall is not a delivery failure.
func (c *Channel) Deliver(ctx context.Context, msg types.PushMessage) error {
	devices, err := c.tokens.ListByUser(ctx, msg.UserID)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		c.logger.InfoContext(ctx, "no devices registered, dropping notification",
			"user_id", msg.UserID,
			"task_id", msg.TaskID,
			"trace_id", msg.TraceID,
		)
		return nil
	}

	tokens := make([]string, len(devices))
	for i, d := range devices {
		tokens[i] = d.Token
	}

	resp, err := c.gateway.Send(ctx, SendRequest{
		Tokens:      tokens,
		Title:       titleFor(msg),
		Body:        msg.Title,
		DeepLinkURL: msg.DeepLinkURL,
		TraceID:     msg.TraceID,
	})
	if err != nil {
		return err
	}

	var dead []string
	delivered := 0
	for _, r := range resp.Results {
		switch r.Status {
		case "ok":
			delivered++
		case "invalid_token":
			dead = append(dead, r.Token)
		}
	}

	if len(dead) > 0 {
		// Pruning is best-effort; a failed prune just means the same dead
		// tokens come back on the next send.
		if _, err := c.tokens.DeleteTokens(ctx, dead); err != nil {
			c.logger.WarnContext(ctx, "failed to prune dead device tokens",
				"user_id", msg.UserID,
				"count", len(dead),
				"error", err,
			)
		}
		if c.metrics != nil {
			c.metrics.RecordPrunedTokens(ctx, len(dead))
		}
	}

	c.logger.InfoContext(ctx, "notification delivered",
		"user_id", msg.UserID,
		"task_id", msg.TaskID,
		"kind", string(msg.Kind),
		"devices", len(tokens),
		"delivered", delivered,
		"pruned", len(dead),
		"trace_id", msg.TraceID,
	)

	return nil
}

// titleFor builds the notification headline; the task title goes in the
// body.
func titleFor(msg types.PushMessage) string {
	if msg.Kind == types.NotifyOverdue {
		return "Task overdue"
	}
	switch {
	case msg.MinutesBefore >= 10080 && msg.MinutesBefore%10080 == 0:
		return fmt.Sprintf("Due in %dw", msg.MinutesBefore/10080)
	case msg.MinutesBefore >= 1440 && msg.MinutesBefore%1440 == 0:
		return fmt.Sprintf("Due in %dd", msg.MinutesBefore/1440)
	case msg.MinutesBefore >= 60 && msg.MinutesBefore%60 == 0:
		return fmt.Sprintf("Due in %dh", msg.MinutesBefore/60)
	default:
		return fmt.Sprintf("Due in %dm", msg.MinutesBefore)
	}
}
