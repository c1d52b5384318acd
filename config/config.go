// Package config resolves runtime settings from command-line flags,
// environment variables and an optional YAML file, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pevans/newsharvest/fetcher"
	"github.com/pevans/newsharvest/orchestrator"
	"github.com/pevans/newsharvest/ratelimit"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Defaults applied to anything neither flags, environment nor the file set.
const (
	DefaultListenAddr  = ":8080"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultMinArticles = 2
	DefaultLastResort  = 1
	dataDirName        = ".newsharvest"
	databaseFileName   = "newsharvest.db"
)

var (
	// ErrHelp is returned by Load when help output was requested and
	// printed.
	ErrHelp = errors.New("help requested")

	// ErrInvalidConfig marks a configuration that cannot be used.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config holds every runtime setting. Flag and env tags are read by
// go-flags; yaml tags by the config file loader.
type Config struct {
	ConfigFile string `long:"config" env:"NEWSHARVEST_CONFIG" description:"Path to the YAML config file (default ~/.newsharvest/config.yaml)" yaml:"-"`

	// Storage
	DBDriver string `long:"db-driver" env:"DB_DRIVER" description:"Database driver: sqlite or postgres (default sqlite)" yaml:"db_driver"`
	DBDSN    string `long:"db-dsn" env:"DATABASE_URL" description:"Database file path or Postgres DSN (default ~/.newsharvest/newsharvest.db)" yaml:"db_dsn"`

	// HTTP server
	ListenAddr string `long:"listen" env:"LISTEN_ADDR" description:"HTTP listen address (default :8080)" yaml:"listen"`

	// Fetching
	MaxRetries   int           `long:"max-retries" env:"FETCH_MAX_RETRIES" description:"Attempts per page fetch (default 3)" yaml:"max_retries"`
	FetchTimeout time.Duration `long:"fetch-timeout" env:"FETCH_TIMEOUT" description:"Timeout per fetch attempt (default 30s)" yaml:"fetch_timeout"`
	Proxy        string        `long:"proxy" env:"FETCH_PROXY" description:"Proxy URL for outbound requests" yaml:"proxy"`

	// Pacing for domains whose source sets no rate limit
	DefaultRateLimit time.Duration `long:"default-rate-limit" env:"FETCH_DEFAULT_RATE_LIMIT" description:"Minimum gap between requests to one domain (default 2s)" yaml:"default_rate_limit"`

	// Scraping
	FullContent           bool `long:"full-content" env:"FETCH_FULL_CONTENT" description:"Fetch each article page for full content" yaml:"full_content"`
	MaxArticles           int  `long:"max-articles" env:"MAX_ARTICLES_PER_SOURCE" description:"Candidates processed per source per run (default 50)" yaml:"max_articles"`
	MinDetectedArticles   int  `long:"autodetect-min" env:"AUTODETECT_MIN_ARTICLES" description:"Articles an auto-detect strategy must find to win (default 2)" yaml:"autodetect_min"`
	LastResortMin         int  `long:"autodetect-last-resort-min" env:"AUTODETECT_LAST_RESORT_MIN" description:"Articles the final auto-detect strategy must find (default 1)" yaml:"autodetect_last_resort_min"`
	DisableStreamedParser bool `long:"no-streamed-payload" env:"AUTODETECT_DISABLE_STREAMED" description:"Skip the streamed payload auto-detect strategy" yaml:"no_streamed_payload"`

	// Coordination and notifications
	RedisAddr   string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for the shared scrape lock" yaml:"redis_addr"`
	SQSQueueURL string `long:"sqs-queue-url" env:"SQS_QUEUE_URL" description:"SQS queue receiving scrape results" yaml:"sqs_queue_url"`
	AWSRegion   string `long:"aws-region" env:"AWS_REGION" description:"AWS region for SQS" yaml:"aws_region"`

	// Logging
	LogLevel  string `long:"log-level" env:"LOG_LEVEL" description:"debug, info, warn or error (default info)" yaml:"log_level"`
	LogFormat string `long:"log-format" env:"LOG_FORMAT" description:"text or json (default text)" yaml:"log_format"`
}

// Load parses args and the environment, then resolves the result against the
// config file and defaults.
func Load(args []string) (*Config, error) {
	var cfg Config

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, ErrHelp
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Resolve(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Resolve fills unset fields from the config file and then from defaults,
// and validates the result. It is used directly by commands that parse
// flags themselves.
func (c *Config) Resolve() error {
	file, err := LoadConfigFile(c.ConfigFile)
	if err != nil {
		return err
	}
	if file != nil {
		c.merge(file)
	}

	if err := c.applyDefaults(); err != nil {
		return err
	}

	return c.Validate()
}

// merge copies values from f into fields c leaves unset.
func (c *Config) merge(f *Config) {
	fillString(&c.DBDriver, f.DBDriver)
	fillString(&c.DBDSN, f.DBDSN)
	fillString(&c.ListenAddr, f.ListenAddr)
	fillInt(&c.MaxRetries, f.MaxRetries)
	if c.FetchTimeout == 0 {
		c.FetchTimeout = f.FetchTimeout
	}
	fillString(&c.Proxy, f.Proxy)
	if c.DefaultRateLimit == 0 {
		c.DefaultRateLimit = f.DefaultRateLimit
	}
	c.FullContent = c.FullContent || f.FullContent
	fillInt(&c.MaxArticles, f.MaxArticles)
	fillInt(&c.MinDetectedArticles, f.MinDetectedArticles)
	fillInt(&c.LastResortMin, f.LastResortMin)
	c.DisableStreamedParser = c.DisableStreamedParser || f.DisableStreamedParser
	fillString(&c.RedisAddr, f.RedisAddr)
	fillString(&c.SQSQueueURL, f.SQSQueueURL)
	fillString(&c.AWSRegion, f.AWSRegion)
	fillString(&c.LogLevel, f.LogLevel)
	fillString(&c.LogFormat, f.LogFormat)
}

func (c *Config) applyDefaults() error {
	fillString(&c.DBDriver, DriverSQLite)
	if c.DBDSN == "" && c.DBDriver == DriverSQLite {
		dir, err := DataDir()
		if err != nil {
			return err
		}
		c.DBDSN = filepath.Join(dir, databaseFileName)
	}
	fillString(&c.ListenAddr, DefaultListenAddr)
	fillInt(&c.MaxRetries, fetcher.DefaultMaxRetries)
	if c.FetchTimeout == 0 {
		c.FetchTimeout = fetcher.DefaultTimeout
	}
	if c.DefaultRateLimit == 0 {
		c.DefaultRateLimit = ratelimit.DefaultInterval
	}
	fillInt(&c.MaxArticles, orchestrator.DefaultMaxArticles)
	fillInt(&c.MinDetectedArticles, DefaultMinArticles)
	fillInt(&c.LastResortMin, DefaultLastResort)
	fillString(&c.LogLevel, DefaultLogLevel)
	fillString(&c.LogFormat, DefaultLogFormat)
	return nil
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("%w: %s requires a DSN", ErrInvalidConfig, c.DBDriver)
	}
	if c.MaxRetries < 0 || c.MaxArticles < 0 || c.MinDetectedArticles < 0 || c.LastResortMin < 0 {
		return fmt.Errorf("%w: counts must not be negative", ErrInvalidConfig)
	}
	if c.DefaultRateLimit < 0 {
		return fmt.Errorf("%w: default rate limit must not be negative", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// FetchOptions returns the per-fetch retry and timeout settings.
func (c *Config) FetchOptions() fetcher.Options {
	return fetcher.Options{
		MaxRetries: c.MaxRetries,
		Timeout:    c.FetchTimeout,
	}
}

// DataDir returns ~/.newsharvest.
func DataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, dataDirName), nil
}

func fillString(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}

func fillInt(dst *int, value int) {
	if *dst == 0 {
		*dst = value
	}
}
