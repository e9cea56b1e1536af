// Package llm is the boundary to the language model service: chat-style
// message lists in, one completion text out.
package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/sqlrag/sqlrag/internal/observability"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one completion call. Purpose labels the call in logs and
// metrics (generate, critique, synthesize).
type Request struct {
	Purpose     string
	Messages    []Message
	Temperature float64
}

type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

type Waiter interface {
	Wait(ctx context.Context) (time.Duration, error)
}

// WithRateLimit makes every call pass through the waiter first. A wait that
// is cut short by the context fails the call without contacting the model.
func WithRateLimit(next Client, waiter Waiter, logger *slog.Logger) Client {
	if waiter == nil {
		return next
	}
	if logger == nil {
		logger = slog.Default()
	}
	return ClientFunc(func(ctx context.Context, req Request) (string, error) {
		waited, err := waiter.Wait(ctx)
		if waited > 0 {
			observability.ObserveRateLimitWait(waited)
			logger.InfoContext(ctx, "model call delayed by rate limit",
				slog.String("purpose", req.Purpose),
				slog.String("waited", waited.String()),
			)
		}
		if err != nil {
			return "", err
		}
		return next.Complete(ctx, req)
	})
}

// WithMetrics records latency and status of every call.
func WithMetrics(next Client) Client {
	return ClientFunc(func(ctx context.Context, req Request) (string, error) {
		start := time.Now()
		out, err := next.Complete(ctx, req)
		observability.ObserveLLMCall(req.Purpose, err, time.Since(start))
		return out, err
	})
}
