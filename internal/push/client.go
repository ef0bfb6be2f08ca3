// Package push delivers notifications to user devices through the mobile
// push gateway. All gateway calls go through GatewayClient, which enforces
// circuit breaking, retries with jittered backoff, and error mapping, so
// a wedged gateway degrades to fast failures instead of piling up workers.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"bubbletasks/internal/types"
)

// RetryPolicy configures retry behavior for gateway calls.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy returns the defaults used by the push worker.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		MinWait:    500 * time.Millisecond,
		MaxWait:    10 * time.Second,
	}
}

// SendRequest is the gateway's batch send payload.
type SendRequest struct {
	Tokens      []string `json:"tokens"`
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	DeepLinkURL string   `json:"deep_link_url,omitempty"`
	TraceID     string   `json:"trace_id,omitempty"`
}

// TokenResult is the gateway's per-token outcome.
type TokenResult struct {
	Token  string `json:"token"`
	Status string `json:"status"` // "ok", "invalid_token", "error"
}

// SendResponse is the gateway's batch send response.
type SendResponse struct {
	Results []TokenResult `json:"results"`
}

// GatewayClient is the resilient HTTP client for the push gateway.
type GatewayClient struct {
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	retryPolicy RetryPolicy
	baseURL     string
	apiKey      string
	sleepFn     func(time.Duration)
}

// GatewayClientOption is a functional option for configuring a GatewayClient.
type GatewayClientOption func(*GatewayClient)

// WithSleepFunc overrides the sleep between retries, for tests.
func WithSleepFunc(fn func(time.Duration)) GatewayClientOption {
	return func(c *GatewayClient) {
		c.sleepFn = fn
	}
}

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(hc *http.Client) GatewayClientOption {
	return func(c *GatewayClient) {
		c.httpClient = hc
	}
}

// NewGatewayClient creates a GatewayClient for the given gateway base URL.
func NewGatewayClient(baseURL, apiKey string, policy RetryPolicy, opts ...GatewayClientOption) *GatewayClient {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "push-gateway",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	c := &GatewayClient{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		breaker:     cb,
		retryPolicy: policy,
		baseURL:     baseURL,
		apiKey:      apiKey,
		sleepFn:     time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts one batch send to the gateway and decodes the per-token
// results. Retries on 429 and 5xx; anything else comes back on the first
// attempt.
func (c *GatewayClient) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode send request", err)
	}

	resp, err := c.do(ctx, body, req.TraceID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(types.ErrCodeUpstreamPush,
			fmt.Sprintf("push gateway returned %d", resp.StatusCode), nil)
	}

	var out SendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamPush, "failed to decode gateway response", err)
	}
	return &out, nil
}

func (c *GatewayClient) do(ctx context.Context, body []byte, traceID string) (*http.Response, error) {
	var lastResp *http.Response
	var lastErr error

	maxAttempts := 1 + c.retryPolicy.MaxRetries
	for attempt := 0; attempt < maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/send", bytes.NewReader(body))
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build gateway request", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		if traceID != "" {
			req.Header.Set("X-Trace-Id", traceID)
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.httpClient.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			// 5xx and 429 count as breaker failures.
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("gateway returned %d", r.StatusCode)
			}
			return r, nil
		})

		if err == nil {
			return resp, nil
		}

		lastErr = err
		if resp != nil {
			if attempt < maxAttempts-1 {
				resp.Body.Close()
			} else {
				lastResp = resp
			}
		}

		// An open breaker means stop immediately; retrying only holds the
		// worker longer.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}

		if attempt < maxAttempts-1 {
			c.sleepFn(c.backoff(attempt, resp))
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}
	return nil, c.mapError(lastResp, lastErr)
}

// backoff respects the Retry-After header when present, otherwise uses
// exponential backoff with full jitter clamped to [MinWait, MaxWait].
func (c *GatewayClient) backoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
				wait := time.Duration(seconds) * time.Second
				if wait > c.retryPolicy.MaxWait {
					wait = c.retryPolicy.MaxWait
				}
				return wait
			}
			if t, err := http.ParseTime(retryAfter); err == nil {
				wait := time.Until(t)
				if wait <= 0 {
					return c.retryPolicy.MinWait
				}
				if wait > c.retryPolicy.MaxWait {
					wait = c.retryPolicy.MaxWait
				}
				return wait
			}
		}
	}

	base := float64(c.retryPolicy.MinWait) * math.Pow(2, float64(attempt))
	maxWait := float64(c.retryPolicy.MaxWait)
	if base > maxWait {
		base = maxWait
	}
	minWait := float64(c.retryPolicy.MinWait)
	if base <= minWait {
		return c.retryPolicy.MinWait
	}
	return time.Duration(minWait + rand.Float64()*(base-minWait))
}

func (c *GatewayClient) mapError(resp *http.Response, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(types.ErrCodeUpstreamPush,
			"circuit breaker is open; push gateway unavailable", err)
	}
	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return types.NewAppError(types.ErrCodeUpstreamRateLimited,
				"push gateway rate limit exceeded", err)
		case resp.StatusCode >= 500:
			return types.NewAppError(types.ErrCodeUpstreamPush,
				fmt.Sprintf("push gateway returned %d after retries", resp.StatusCode), err)
		}
	}
	return types.NewAppError(types.ErrCodeUpstreamPush, "push gateway request failed", err)
}
