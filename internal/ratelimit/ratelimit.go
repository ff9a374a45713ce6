// Package ratelimit bounds outbound calls to the remote classification
// service with a sliding window: at most maxCalls call timestamps are ever
// recorded within any rolling window of the configured length.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Limiter is a sliding-window rate limiter safe for concurrent use
type Limiter struct {
	mu       sync.Mutex
	calls    []time.Time
	maxCalls int
	window   time.Duration
	logger   *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a limiter allowing maxCalls per window
func New(maxCalls int, window time.Duration, logger *zap.Logger) *Limiter {
	if maxCalls < 1 {
		maxCalls = 1
	}
	return &Limiter{
		maxCalls: maxCalls,
		window:   window,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Wait blocks until recording a new call would not exceed the window
// ceiling, then records it. Returns early only on context cancellation.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.purge(now)

		if len(l.calls) < l.maxCalls {
			l.calls = append(l.calls, now)
			l.mu.Unlock()
			return nil
		}

		// Oldest recorded call defines how long until a slot opens
		wait := l.window - now.Sub(l.calls[0])
		l.mu.Unlock()

		if wait < 0 {
			continue
		}
		l.logger.Warn("rate limit reached, waiting",
			zap.Duration("wait", wait),
			zap.Int("max_calls", l.maxCalls),
			zap.Duration("window", l.window))
		if err := l.sleep(ctx, wait+10*time.Millisecond); err != nil {
			return err
		}
	}
}

// Recorded returns how many calls currently sit inside the window
func (l *Limiter) Recorded() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.purge(l.now())
	return len(l.calls)
}

// purge drops timestamps older than the window boundary. Caller holds mu.
func (l *Limiter) purge(now time.Time) {
	cutoff := now.Add(-l.window)
	idx := 0
	for idx < len(l.calls) && !l.calls[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		l.calls = append(l.calls[:0], l.calls[idx:]...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
