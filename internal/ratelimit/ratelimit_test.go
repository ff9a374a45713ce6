package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeClock drives the limiter deterministically: sleeping advances time
type fakeClock struct {
	now    time.Time
	slept  []time.Duration
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	c.sleeps++
	c.now = c.now.Add(d)
	return nil
}

func newTestLimiter(maxCalls int, window time.Duration) (*Limiter, *fakeClock) {
	clock := newFakeClock()
	l := New(maxCalls, window, zap.NewNop())
	l.now = clock.Now
	l.sleep = clock.Sleep
	return l, clock
}

func TestWaitUnderCeiling(t *testing.T) {
	l, clock := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	assert.Equal(t, 0, clock.sleeps)
	assert.Equal(t, 3, l.Recorded())
}

func TestWaitBlocksAtCeiling(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)

	require.NoError(t, l.Wait(context.Background()))
	clock.now = clock.now.Add(10 * time.Second)
	require.NoError(t, l.Wait(context.Background()))

	// Third call must wait until the first timestamp leaves the window:
	// 60s window minus the 10s already elapsed, plus the settle margin
	require.NoError(t, l.Wait(context.Background()))
	require.Equal(t, 1, clock.sleeps)
	assert.Equal(t, 50*time.Second+10*time.Millisecond, clock.slept[0])
}

func TestWindowSlides(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)

	require.NoError(t, l.Wait(context.Background()))
	require.NoError(t, l.Wait(context.Background()))
	assert.Equal(t, 2, l.Recorded())

	// After the window passes, old timestamps purge and calls are free again
	clock.now = clock.now.Add(61 * time.Second)
	assert.Equal(t, 0, l.Recorded())
	require.NoError(t, l.Wait(context.Background()))
	assert.Equal(t, 0, clock.sleeps)
}

func TestWaitHonorsCancellation(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)
	l.sleep = func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}

	require.NoError(t, l.Wait(context.Background()))
	err := l.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	// The aborted call was never recorded
	assert.Equal(t, 1, l.Recorded())
}

func TestRateNeverExceedsCeiling(t *testing.T) {
	const maxCalls = 50
	window := time.Minute
	l, clock := newTestLimiter(maxCalls, window)

	// Hammer the limiter; count how many calls land inside any one window
	start := clock.now
	callTimes := make([]time.Time, 0, 120)
	for i := 0; i < 120; i++ {
		require.NoError(t, l.Wait(context.Background()))
		callTimes = append(callTimes, clock.now)
	}

	for i, at := range callTimes {
		inWindow := 0
		for _, other := range callTimes {
			if !other.Before(at.Add(-window)) && !other.After(at) {
				inWindow++
			}
		}
		assert.LessOrEqual(t, inWindow, maxCalls, "window ending at call %d", i)
	}
	assert.True(t, clock.now.After(start), "the burst must have been spread over time")
}
