package runlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLocal_Exclusive verifies a second lock fails until release
func TestLocal_Exclusive(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	release, err := l.Lock(ctx)
	require.NoError(t, err)

	_, err = l.Lock(ctx)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx), "double release is harmless")

	release, err = l.Lock(ctx)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

// Test helper: a Redis lock with a fixed token
func createTestRedisLock(t *testing.T) (*Redis, redismock.ClientMock) {
	t.Helper()

	db, mock := redismock.NewClientMock()
	r := NewRedis(db, WithKey("test-lock"), WithTTL(time.Minute))
	r.newToken = func() string { return "token-1" }
	return r, mock
}

// TestRedis_AcquireAndRelease verifies SETNX then the guarded delete
func TestRedis_AcquireAndRelease(t *testing.T) {
	r, mock := createTestRedisLock(t)
	ctx := context.Background()

	mock.ExpectSetNX("test-lock", "token-1", time.Minute).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"test-lock"}, "token-1").SetVal(int64(1))

	release, err := r.Lock(ctx)
	require.NoError(t, err)
	require.NoError(t, release(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestRedis_Held verifies a held key yields ErrLocked
func TestRedis_Held(t *testing.T) {
	r, mock := createTestRedisLock(t)

	mock.ExpectSetNX("test-lock", "token-1", time.Minute).SetVal(false)

	_, err := r.Lock(context.Background())
	assert.ErrorIs(t, err, ErrLocked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestRedis_Error verifies Redis failures are wrapped
func TestRedis_Error(t *testing.T) {
	r, mock := createTestRedisLock(t)

	mock.ExpectSetNX("test-lock", "token-1", time.Minute).SetErr(errors.New("connection refused"))

	_, err := r.Lock(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLocked)
	assert.Contains(t, err.Error(), "failed to acquire lock")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestNewRedis_Defaults verifies default key and TTL
func TestNewRedis_Defaults(t *testing.T) {
	db, _ := redismock.NewClientMock()
	r := NewRedis(db, WithKey(""), WithTTL(0))
	assert.Equal(t, DefaultKey, r.key)
	assert.Equal(t, DefaultTTL, r.ttl)
}
