package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock продвигает время только при Sleep
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
	err    error
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	if c.err != nil {
		return c.err
	}
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ===================== Acquire Tests =====================

func TestAcquire_FirstCallDoesNotWait(t *testing.T) {
	clock := newFakeClock()
	limiter := New(100*time.Millisecond, clock)

	err := limiter.Acquire(context.Background())

	require.NoError(t, err)
	assert.Empty(t, clock.sleeps)
}

func TestAcquire_EnforcesMinimumInterval(t *testing.T) {
	clock := newFakeClock()
	limiter := New(100*time.Millisecond, clock)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, limiter.Acquire(ctx))
	}

	// Первый вызов проходит сразу, каждый следующий ждет полный интервал
	require.Len(t, clock.sleeps, 3)
	for _, d := range clock.sleeps {
		assert.InDelta(t, float64(100*time.Millisecond), float64(d), float64(time.Microsecond))
	}
}

func TestAcquire_NoWaitAfterIntervalElapsed(t *testing.T) {
	clock := newFakeClock()
	limiter := New(100*time.Millisecond, clock)
	ctx := context.Background()

	require.NoError(t, limiter.Acquire(ctx))
	clock.advance(150 * time.Millisecond)
	require.NoError(t, limiter.Acquire(ctx))

	assert.Empty(t, clock.sleeps)
}

func TestAcquire_PartialWait(t *testing.T) {
	clock := newFakeClock()
	limiter := New(100*time.Millisecond, clock)
	ctx := context.Background()

	require.NoError(t, limiter.Acquire(ctx))
	clock.advance(40 * time.Millisecond)
	require.NoError(t, limiter.Acquire(ctx))

	require.Len(t, clock.sleeps, 1)
	assert.InDelta(t, float64(60*time.Millisecond), float64(clock.sleeps[0]), float64(time.Microsecond))
}

func TestAcquire_ZeroIntervalDisablesLimit(t *testing.T) {
	clock := newFakeClock()
	limiter := New(0, clock)

	for i := 0; i < 10; i++ {
		require.NoError(t, limiter.Acquire(context.Background()))
	}

	assert.Empty(t, clock.sleeps)
}

func TestAcquire_CancelledContext(t *testing.T) {
	clock := newFakeClock()
	limiter := New(100*time.Millisecond, clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := limiter.Acquire(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestAcquire_SleepErrorReturnsToken(t *testing.T) {
	clock := newFakeClock()
	limiter := New(100*time.Millisecond, clock)
	ctx := context.Background()

	require.NoError(t, limiter.Acquire(ctx))

	clock.err = context.DeadlineExceeded
	err := limiter.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// После отмены следующий вызов ждет не больше одного интервала
	clock.err = nil
	require.NoError(t, limiter.Acquire(ctx))
	last := clock.sleeps[len(clock.sleeps)-1]
	assert.LessOrEqual(t, last, 100*time.Millisecond+time.Microsecond)
}

func TestAcquire_RealClock(t *testing.T) {
	limiter := New(20*time.Millisecond, nil)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Acquire(ctx))
	require.NoError(t, limiter.Acquire(ctx))
	require.NoError(t, limiter.Acquire(ctx))

	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
	assert.Equal(t, 20*time.Millisecond, limiter.Interval())
}
