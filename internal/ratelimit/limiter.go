// Package ratelimit bounds outbound model calls to a fixed number per
// rolling window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter admits at most Max calls in any rolling Window. Callers over the
// quota block until the oldest recorded call leaves the window. A single
// mutex guards the call log, so waiting callers are admitted one at a time.
type Limiter struct {
	max    int
	window time.Duration

	mu    sync.Mutex
	calls []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New returns a limiter for max calls per window. A non-positive max means
// no limit.
func New(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:    max,
		window: window,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

func PerMinute(max int) *Limiter {
	return New(max, time.Minute)
}

// Wait blocks until a call is admitted and records it. It returns how long
// the caller was held back, or the context error if the wait was cut short.
func (l *Limiter) Wait(ctx context.Context) (time.Duration, error) {
	if l == nil || l.max <= 0 {
		return 0, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var waited time.Duration
	for {
		now := l.now()
		l.prune(now)
		if len(l.calls) < l.max {
			l.calls = append(l.calls, now)
			return waited, nil
		}
		delay := l.window - now.Sub(l.calls[0])
		if delay <= 0 {
			continue
		}
		if err := l.sleep(ctx, delay); err != nil {
			return waited, err
		}
		waited += delay
	}
}

// InWindow reports how many calls are currently counted against the quota.
func (l *Limiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.calls)
}

func (l *Limiter) prune(now time.Time) {
	cutoff := 0
	for cutoff < len(l.calls) && now.Sub(l.calls[cutoff]) >= l.window {
		cutoff++
	}
	if cutoff > 0 {
		l.calls = append(l.calls[:0], l.calls[cutoff:]...)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
