package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pevans/newsharvest/config"
	"github.com/pevans/newsharvest/logging"
	"github.com/pevans/newsharvest/runlock"
	"github.com/pevans/newsharvest/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: a resolved SQLite configuration in a temp dir
func createTestConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		DBDriver:            config.DriverSQLite,
		DBDSN:               filepath.Join(t.TempDir(), "nested", "harvest.db"),
		MaxRetries:          1,
		MaxArticles:         10,
		MinDetectedArticles: 2,
		LastResortMin:       1,
		DefaultRateLimit:    750 * time.Millisecond,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// TestNew_SQLite verifies the pipeline is wired over a fresh database
func TestNew_SQLite(t *testing.T) {
	a, err := New(context.Background(), createTestConfig(t), logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Store.Ping(context.Background()))
	assert.NotNil(t, a.Orchestrator)
	assert.NotNil(t, a.Fetcher)
	assert.Same(t, a.Limiter, a.Fetcher.Limiter())
	assert.Equal(t, 750*time.Millisecond, a.Limiter.Interval("https://unseen.example.com/"))

	settings, err := a.Store.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.DefaultSettings(), settings)
}

// TestNew_InvalidProxy verifies a malformed proxy URL is rejected
func TestNew_InvalidProxy(t *testing.T) {
	cfg := createTestConfig(t)
	cfg.Proxy = "http://[::1"

	_, err := New(context.Background(), cfg, logging.Discard())
	assert.ErrorContains(t, err, "invalid proxy URL")
}

// TestNew_LocalLockGuardsBatch verifies the in-process lock is used when no
// Redis address is set
func TestNew_LocalLockGuardsBatch(t *testing.T) {
	a, err := New(context.Background(), createTestConfig(t), logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	_, ok := a.locker().(*runlock.Local)
	assert.True(t, ok)
}

// TestOpenStore_UnknownDriver verifies unsupported drivers fail
func TestOpenStore_UnknownDriver(t *testing.T) {
	_, err := OpenStore(&config.Config{DBDriver: "mysql", DBDSN: "x"})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

// TestServer_Health verifies the API server is wired to the store
func TestServer_Health(t *testing.T) {
	gin.SetMode(gin.TestMode)

	a, err := New(context.Background(), createTestConfig(t), logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	w := httptest.NewRecorder()
	a.Server().SetupRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestServe_StopsOnCancel verifies the server shuts down when the context
// ends
func TestServe_StopsOnCancel(t *testing.T) {
	a, err := New(context.Background(), createTestConfig(t), logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, "127.0.0.1:0") }()

	cancel()
	assert.NoError(t, <-done)
}

// TestServe_ListenError verifies a bad address is reported
func TestServe_ListenError(t *testing.T) {
	a, err := New(context.Background(), createTestConfig(t), logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	err = a.Serve(context.Background(), "not-an-address")
	assert.ErrorContains(t, err, "HTTP server error")
}
