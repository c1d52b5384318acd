package fetcher

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pevans/newsharvest/ratelimit"
	"golang.org/x/net/html/charset"
)

const (
	// DefaultMaxRetries is the total number of attempts per fetch.
	DefaultMaxRetries = 3
	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 30 * time.Second
	// MaxRedirects is the longest redirect chain followed.
	MaxRedirects = 5

	baseBackoff = 1000 * time.Millisecond
	maxBackoff  = 10 * time.Second
)

// Options tunes a single fetch.
type Options struct {
	// MaxRetries is the total number of attempts. Zero means
	// DefaultMaxRetries.
	MaxRetries int
	// Timeout bounds each attempt. Zero means DefaultTimeout.
	Timeout time.Duration
	// RateLimit, when positive, sets the pacing interval for the URL's
	// domain before the first attempt.
	RateLimit time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// PageResult holds the outcome of one URL in a batch fetch.
type PageResult struct {
	Body string
	Err  error
}

// Fetcher performs rate-limited GET requests with retries and user-agent
// rotation.
type Fetcher struct {
	limiter    *ratelimit.Limiter
	client     *http.Client
	userAgents []string
	pick       func(n int) int
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the underlying HTTP client. The redirect policy is
// still enforced.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) { f.client = client }
}

// WithProxy routes every request through the given proxy URL.
func WithProxy(proxyURL *url.URL) Option {
	return func(f *Fetcher) {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		f.client.Transport = transport
	}
}

// WithUserAgents replaces the user-agent pool.
func WithUserAgents(agents []string) Option {
	return func(f *Fetcher) {
		if len(agents) > 0 {
			f.userAgents = agents
		}
	}
}

// WithLogger sets the logger used for retry messages.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithBackoffSleep replaces the function used to wait between attempts.
func WithBackoffSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Fetcher) { f.sleep = sleep }
}

// New creates a fetcher that paces requests through limiter.
func New(limiter *ratelimit.Limiter, opts ...Option) *Fetcher {
	if limiter == nil {
		limiter = ratelimit.NewLimiter()
	}

	f := &Fetcher{
		limiter:    limiter,
		client:     &http.Client{},
		userAgents: DefaultUserAgents,
		pick:       rand.Intn,
		sleep:      sleepContext,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}

	f.client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) > MaxRedirects {
			return ErrTooManyRedirects
		}
		return nil
	}

	return f
}

// Limiter returns the rate limiter shared by this fetcher.
func (f *Fetcher) Limiter() *ratelimit.Limiter {
	return f.limiter
}

// Backoff returns the delay before the attempt following the given one:
// 1s, 2s, 4s, ... capped at 10s.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := baseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// FetchPage returns the body of rawURL. Client errors (4xx except 429) fail
// immediately; everything else is retried with exponential backoff up to
// opts.MaxRetries attempts.
func (f *Fetcher) FetchPage(ctx context.Context, rawURL string, opts Options) (string, error) {
	opts = opts.withDefaults()

	if opts.RateLimit > 0 {
		f.limiter.SetLimit(rawURL, opts.RateLimit)
	}

	var lastErr error
	var lastStatus int

	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		if err := f.limiter.WaitForSlot(ctx, rawURL); err != nil {
			return "", &FetchError{URL: rawURL, Attempts: attempt, Err: err}
		}

		body, status, err := f.attempt(ctx, rawURL, opts.Timeout)
		if err == nil {
			return body, nil
		}

		lastErr = err
		lastStatus = status

		if isPermanent(err) {
			return "", &FetchError{URL: rawURL, Attempts: attempt, StatusCode: status, Err: err}
		}
		if ctx.Err() != nil {
			return "", &FetchError{URL: rawURL, Attempts: attempt, StatusCode: status, Err: ctx.Err()}
		}

		if attempt < opts.MaxRetries {
			delay := Backoff(attempt)
			f.logger.Info("Retrying fetch",
				"url", rawURL,
				"attempt", attempt,
				"max_retries", opts.MaxRetries,
				"backoff", delay,
				"error", err)
			if err := f.sleep(ctx, delay); err != nil {
				return "", &FetchError{URL: rawURL, Attempts: attempt, StatusCode: status, Err: err}
			}
		}
	}

	return "", &FetchError{URL: rawURL, Attempts: opts.MaxRetries, StatusCode: lastStatus, Err: lastErr}
}

// FetchPages fetches each URL in turn, never concurrently. A failing URL is
// recorded and the batch continues.
func (f *Fetcher) FetchPages(ctx context.Context, urls []string, opts Options) map[string]PageResult {
	results := make(map[string]PageResult, len(urls))
	for _, u := range urls {
		body, err := f.FetchPage(ctx, u, opts)
		results[u] = PageResult{Body: body, Err: err}
	}
	return results
}

// attempt performs a single GET and returns the decoded body.
func (f *Fetcher) attempt(ctx context.Context, rawURL string, timeout time.Duration) (string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	for key, value := range browserHeaders {
		req.Header.Set(key, value)
	}
	req.Header.Set("User-Agent", f.userAgents[f.pick(len(f.userAgents))])

	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return "", resp.StatusCode, statusError(resp.StatusCode, resp.Status)
	}

	body, err := readBody(resp)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("failed to read body: %w", err)
	}

	return body, resp.StatusCode, nil
}

// readBody undoes content encoding and converts the body to UTF-8 according
// to the declared or sniffed charset.
func readBody(resp *http.Response) (string, error) {
	var reader io.Reader = resp.Body

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("failed to open gzip body: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl, err := deflateReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("failed to open deflate body: %w", err)
		}
		defer fl.Close()
		reader = fl
	}

	utf8Reader, err := charset.NewReader(reader, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("failed to decode charset: %w", err)
	}

	data, err := io.ReadAll(utf8Reader)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// deflateReader decodes an HTTP deflate body. The encoding is zlib-wrapped,
// but some servers send a raw deflate stream, so the zlib header is checked
// before choosing.
func deflateReader(body io.Reader) (io.ReadCloser, error) {
	buffered := bufio.NewReader(body)
	header, err := buffered.Peek(2)
	if err == nil && isZlibHeader(header[0], header[1]) {
		return zlib.NewReader(buffered)
	}
	return flate.NewReader(buffered), nil
}

// isZlibHeader reports whether cmf and flg form a valid zlib stream header
// (RFC 1950): deflate compression method and a check sum divisible by 31.
func isZlibHeader(cmf, flg byte) bool {
	return cmf&0x0f == 8 && (uint16(cmf)<<8|uint16(flg))%31 == 0
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
