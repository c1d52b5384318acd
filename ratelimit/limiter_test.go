package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances virtual time whenever the limiter sleeps.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 11, 23, 9, 0, 0, 0, time.UTC)}
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
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(clock *fakeClock) *Limiter {
	return NewLimiter(WithClock(clock.Now, clock.Sleep))
}

// TestDomain_StripsSchemeAndPath verifies domain extraction
func TestDomain_StripsSchemeAndPath(t *testing.T) {
	assert.Equal(t, "www.example.com", Domain("https://www.example.com/markets/news?page=2"))
	assert.Equal(t, "example.com", Domain("http://EXAMPLE.com:8080/a"))
	assert.Equal(t, "not a url", Domain("not a url"))
}

// TestWaitForSlot_FirstRequestDoesNotWait verifies an unseen domain is free
func TestWaitForSlot_FirstRequestDoesNotWait(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(clock)

	require.NoError(t, limiter.WaitForSlot(context.Background(), "https://example.com/a"))
	assert.Empty(t, clock.sleeps)
}

// TestWaitForSlot_DefaultInterval verifies the 2s default pacing
func TestWaitForSlot_DefaultInterval(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(clock)
	ctx := context.Background()

	require.NoError(t, limiter.WaitForSlot(ctx, "https://example.com/a"))
	clock.Advance(500 * time.Millisecond)
	require.NoError(t, limiter.WaitForSlot(ctx, "https://example.com/b"))

	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, 1500*time.Millisecond, clock.sleeps[0])
}

// TestWaitForSlot_ConfiguredInterval verifies the gap between requests is at
// least the configured interval
func TestWaitForSlot_ConfiguredInterval(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(clock)
	ctx := context.Background()

	limiter.SetLimit("https://example.com/", 4*time.Second)

	var stamps []time.Time
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.WaitForSlot(ctx, "https://example.com/page"))
		stamps = append(stamps, clock.Now())
	}

	for i := 1; i < len(stamps); i++ {
		assert.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), 4*time.Second)
	}
}

// TestWaitForSlot_DomainsAreIndependent verifies unrelated domains never block
// each other
func TestWaitForSlot_DomainsAreIndependent(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(clock)
	ctx := context.Background()

	require.NoError(t, limiter.WaitForSlot(ctx, "https://a.example.com/"))
	require.NoError(t, limiter.WaitForSlot(ctx, "https://b.example.com/"))

	assert.Empty(t, clock.sleeps)
}

// TestWaitForSlot_ElapsedIntervalDoesNotWait verifies no wait once the
// interval has passed
func TestWaitForSlot_ElapsedIntervalDoesNotWait(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(clock)
	ctx := context.Background()

	require.NoError(t, limiter.WaitForSlot(ctx, "https://example.com/"))
	clock.Advance(5 * time.Second)
	require.NoError(t, limiter.WaitForSlot(ctx, "https://example.com/"))

	assert.Empty(t, clock.sleeps)
}

// TestSetLimit_PreservesLastRequest verifies changing the interval keeps the
// domain's history
func TestSetLimit_PreservesLastRequest(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(clock)
	ctx := context.Background()

	require.NoError(t, limiter.WaitForSlot(ctx, "https://example.com/"))
	limiter.SetLimit("https://example.com/other", 4*time.Second)
	assert.Equal(t, 4*time.Second, limiter.Interval("https://example.com"))

	require.NoError(t, limiter.WaitForSlot(ctx, "https://example.com/"))
	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, 4*time.Second, clock.sleeps[0])
}

// TestReset_ClearsState verifies reset forgets domains
func TestReset_ClearsState(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(clock)
	ctx := context.Background()

	limiter.SetLimit("https://example.com/", 10*time.Second)
	require.NoError(t, limiter.WaitForSlot(ctx, "https://example.com/"))

	limiter.Reset()

	assert.Equal(t, DefaultInterval, limiter.Interval("https://example.com/"))
	require.NoError(t, limiter.WaitForSlot(ctx, "https://example.com/"))
	assert.Empty(t, clock.sleeps)
}

// TestWaitForSlot_ConcurrentCallersReserveDistinctSlots verifies concurrent
// callers to one domain are spaced out
func TestWaitForSlot_ConcurrentCallersReserveDistinctSlots(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	var waits []time.Duration

	limiter := NewLimiter(
		WithDefaultInterval(time.Second),
		WithClock(
			func() time.Time { return start },
			func(_ context.Context, d time.Duration) error {
				mu.Lock()
				defer mu.Unlock()
				waits = append(waits, d)
				return nil
			},
		),
	)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = limiter.WaitForSlot(context.Background(), "https://example.com/")
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, waits)
}

// TestWaitForSlot_ContextCancelled verifies cancellation interrupts the wait
func TestWaitForSlot_ContextCancelled(t *testing.T) {
	limiter := NewLimiter(WithDefaultInterval(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, limiter.WaitForSlot(ctx, "https://example.com/"))
	cancel()

	err := limiter.WaitForSlot(ctx, "https://example.com/")
	assert.ErrorIs(t, err, context.Canceled)
}

// TestWaitForSlot_CancelledWaitReleasesSlot verifies an abandoned wait does
// not push later callers further back
func TestWaitForSlot_CancelledWaitReleasesSlot(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var waits []time.Duration
	fail := true

	limiter := NewLimiter(WithClock(
		func() time.Time { return start },
		func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			if fail {
				fail = false
				return context.Canceled
			}
			return nil
		},
	))
	ctx := context.Background()

	require.NoError(t, limiter.WaitForSlot(ctx, "https://example.com/"))
	assert.ErrorIs(t, limiter.WaitForSlot(ctx, "https://example.com/"), context.Canceled)
	require.NoError(t, limiter.WaitForSlot(ctx, "https://example.com/"))

	assert.Equal(t, []time.Duration{DefaultInterval, DefaultInterval}, waits)
}
