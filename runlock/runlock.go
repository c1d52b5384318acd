// Package runlock keeps two scrape runs from overlapping.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another run holds the lock.
var ErrLocked = errors.New("a scrape run is already in progress")

// Defaults for the Redis lock.
const (
	DefaultKey = "newsharvest:scrape-lock"
	DefaultTTL = 30 * time.Minute
)

// Release gives up a held lock.
type Release func(ctx context.Context) error

// Locker grants exclusive scrape runs.
type Locker interface {
	Lock(ctx context.Context) (Release, error)
}

// Local is an in-process lock.
type Local struct {
	mu sync.Mutex
}

// NewLocal creates an in-process lock.
func NewLocal() *Local {
	return &Local{}
}

// Lock acquires the lock without waiting.
func (l *Local) Lock(context.Context) (Release, error) {
	if !l.mu.TryLock() {
		return nil, ErrLocked
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(l.mu.Unlock)
		return nil
	}, nil
}

// releaseScript deletes the key only while it still holds our token, so a
// run that outlived its TTL cannot free someone else's lock.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// Redis is a lock shared by every process using the same Redis key.
type Redis struct {
	client   redis.Cmdable
	key      string
	ttl      time.Duration
	newToken func() string
}

// RedisOption configures a Redis lock.
type RedisOption func(*Redis)

// WithKey sets the Redis key.
func WithKey(key string) RedisOption {
	return func(r *Redis) {
		if key != "" {
			r.key = key
		}
	}
}

// WithTTL sets how long a lock survives a crashed holder.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// NewRedis creates a Redis lock.
func NewRedis(client redis.Cmdable, opts ...RedisOption) *Redis {
	r := &Redis{
		client:   client,
		key:      DefaultKey,
		ttl:      DefaultTTL,
		newToken: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lock acquires the lock without waiting.
func (r *Redis) Lock(ctx context.Context) (Release, error) {
	token := r.newToken()

	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	return func(ctx context.Context) error {
		if err := r.client.Eval(ctx, releaseScript, []string{r.key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release lock: %w", err)
		}
		return nil
	}, nil
}
