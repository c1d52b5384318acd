// Package app assembles the scraping components from a resolved
// configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/pevans/newsharvest/api"
	"github.com/pevans/newsharvest/autodetect"
	"github.com/pevans/newsharvest/config"
	"github.com/pevans/newsharvest/fetcher"
	"github.com/pevans/newsharvest/notify"
	"github.com/pevans/newsharvest/orchestrator"
	"github.com/pevans/newsharvest/ratelimit"
	"github.com/pevans/newsharvest/runlock"
	"github.com/pevans/newsharvest/store"
	"github.com/pevans/newsharvest/store/gormstore"
	"github.com/redis/go-redis/v9"
)

// App holds the wired components. Close releases them.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Store        store.Store
	Limiter      *ratelimit.Limiter
	Fetcher      *fetcher.Fetcher
	Orchestrator *orchestrator.Orchestrator

	closers []func() error
}

// New opens the store and builds the scraping pipeline described by cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, Logger: logger}

	s, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	a.Store = s
	a.closers = append(a.closers, s.Close)

	fetcherOpts := []fetcher.Option{fetcher.WithLogger(logger)}
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		fetcherOpts = append(fetcherOpts, fetcher.WithProxy(proxyURL))
	}
	var limiterOpts []ratelimit.Option
	if cfg.DefaultRateLimit > 0 {
		limiterOpts = append(limiterOpts, ratelimit.WithDefaultInterval(cfg.DefaultRateLimit))
	}
	a.Limiter = ratelimit.NewLimiter(limiterOpts...)
	a.Fetcher = fetcher.New(a.Limiter, fetcherOpts...)

	detectorOpts := []autodetect.Option{
		autodetect.WithLogger(logger),
		autodetect.WithMinArticles(cfg.MinDetectedArticles),
		autodetect.WithLastResortMin(cfg.LastResortMin),
	}
	if cfg.DisableStreamedParser {
		detectorOpts = append(detectorOpts, autodetect.WithoutStreamedPayload())
	}

	orchestratorOpts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithDetector(autodetect.New(detectorOpts...)),
		orchestrator.WithMaxArticles(cfg.MaxArticles),
		orchestrator.WithFullContent(cfg.FullContent),
		orchestrator.WithFetchOptions(cfg.FetchOptions()),
		orchestrator.WithLocker(a.locker()),
	}

	if cfg.SQSQueueURL != "" {
		notifier, err := notify.NewSQSNotifierFromEnv(ctx, cfg.SQSQueueURL, cfg.AWSRegion)
		if err != nil {
			a.Close()
			return nil, err
		}
		orchestratorOpts = append(orchestratorOpts, orchestrator.WithNotifier(notifier))
	}

	a.Orchestrator = orchestrator.New(a.Store, a.Fetcher, orchestratorOpts...)

	return a, nil
}

// locker returns the shared Redis lock when configured, else an in-process
// one.
func (a *App) locker() runlock.Locker {
	if a.Config.RedisAddr == "" {
		return runlock.NewLocal()
	}

	client := redis.NewClient(&redis.Options{Addr: a.Config.RedisAddr})
	a.closers = append(a.closers, client.Close)
	return runlock.NewRedis(client)
}

// Server returns an API server over the app's store and orchestrator.
func (a *App) Server() *api.Server {
	return api.NewServer(a.Store, a.Orchestrator, a.Logger)
}

// Close releases every opened resource, most recent first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenStore opens the configured database and applies migrations.
func OpenStore(cfg *config.Config) (store.Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		s, err := gormstore.Open(cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.DBDSN); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		s, err := store.NewSQLiteStore(cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", config.ErrInvalidConfig, cfg.DBDriver)
	}
}
