package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the pacing applied to a domain that never had a limit
// configured.
const DefaultInterval = 2000 * time.Millisecond

// domainState tracks pacing for a single host. The token bucket holds a
// single token refilled once per interval.
type domainState struct {
	bucket   *rate.Limiter
	interval time.Duration
}

func newDomainState(interval time.Duration) *domainState {
	return &domainState{
		bucket:   rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// Limiter paces outbound requests per domain. One Limiter is meant to live
// for the whole process and be shared by every fetcher so that repeated
// scrapes of the same site still respect its interval. It is safe for
// concurrent use: a slot is reserved before the caller sleeps, so two
// goroutines targeting the same domain never share a slot.
type Limiter struct {
	mu              sync.Mutex
	domains         map[string]*domainState
	defaultInterval time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithDefaultInterval overrides the interval used for unconfigured domains.
func WithDefaultInterval(d time.Duration) Option {
	return func(l *Limiter) { l.defaultInterval = d }
}

// WithClock replaces the time source and sleeper. Used by tests to observe
// pacing without waiting in real time.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

// NewLimiter creates a limiter with the default 2s interval.
func NewLimiter(opts ...Option) *Limiter {
	l := &Limiter{
		domains:         make(map[string]*domainState),
		defaultInterval: DefaultInterval,
		now:             time.Now,
		sleep:           sleepContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetLimit records the minimum interval between requests to the domain of
// rawURL. The domain's last request time is preserved.
func (l *Limiter) SetLimit(rawURL string, interval time.Duration) {
	domain := Domain(rawURL)

	l.mu.Lock()
	defer l.mu.Unlock()

	if state, ok := l.domains[domain]; ok {
		state.bucket.SetLimitAt(l.now(), rate.Every(interval))
		state.interval = interval
		return
	}
	l.domains[domain] = newDomainState(interval)
}

// Interval returns the interval currently applied to the domain of rawURL.
func (l *Limiter) Interval(rawURL string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if state, ok := l.domains[Domain(rawURL)]; ok {
		return state.interval
	}
	return l.defaultInterval
}

// WaitForSlot blocks until a request to the domain of rawURL is allowed and
// stamps the domain's last request time. It returns early with the context
// error if ctx is cancelled while waiting, giving the slot back.
func (l *Limiter) WaitForSlot(ctx context.Context, rawURL string) error {
	domain := Domain(rawURL)

	l.mu.Lock()
	state, ok := l.domains[domain]
	if !ok {
		state = newDomainState(l.defaultInterval)
		l.domains[domain] = state
	}

	now := l.now()
	reservation := state.bucket.ReserveN(now, 1)
	l.mu.Unlock()

	wait := reservation.DelayFrom(now)
	if wait <= 0 {
		return nil
	}

	if err := l.sleep(ctx, wait); err != nil {
		reservation.CancelAt(l.now())
		return err
	}
	return nil
}

// Reset forgets every domain.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.domains = make(map[string]*domainState)
}

// Domain extracts the host of rawURL. Strings that do not parse as a URL
// with a host are used as-is, lowercased.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(u.Hostname())
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
