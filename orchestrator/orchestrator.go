// Package orchestrator runs the per-source scrape workflow: fetch the
// listing page, parse it with the source's selectors or auto-detection,
// and reconcile the candidates with the store.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pevans/newsharvest/autodetect"
	"github.com/pevans/newsharvest/fetcher"
	"github.com/pevans/newsharvest/parser"
	"github.com/pevans/newsharvest/runlock"
	"github.com/pevans/newsharvest/scraper"
	"github.com/pevans/newsharvest/store"
)

// DefaultMaxArticles caps the candidates processed per source per run.
const DefaultMaxArticles = 50

// unknownSource names the result of a scrape whose source does not exist.
const unknownSource = "Unknown"

// Store is the persistence the orchestrator needs.
type Store interface {
	GetSource(ctx context.Context, id string) (*store.Source, error)
	ListSources(ctx context.Context, activeOnly bool) ([]store.Source, error)
	UpsertArticle(ctx context.Context, sourceID string, article scraper.ScrapedArticle) (bool, error)
	MarkScraped(ctx context.Context, id string, at time.Time) error
	SourceStatuses(ctx context.Context) ([]store.SourceStatus, error)
	GetSettings(ctx context.Context) (*store.Settings, error)
}

// PageFetcher retrieves page HTML.
type PageFetcher interface {
	FetchPage(ctx context.Context, rawURL string, opts fetcher.Options) (string, error)
}

// Detector finds articles on pages the selectors could not parse.
type Detector interface {
	Detect(html, pageURL string) []scraper.ScrapedArticle
}

// Notifier publishes each scrape result.
type Notifier interface {
	Publish(ctx context.Context, msg any) error
}

// ScrapeResult reports one source's scrape. Success means the listing page
// was fetched and parsed; ArticlesCount is the number of articles actually
// saved.
type ScrapeResult struct {
	SourceID      string `json:"sourceId,omitempty"`
	Source        string `json:"source"`
	Success       bool   `json:"success"`
	ArticlesCount int    `json:"articlesCount"`
	Error         string `json:"error,omitempty"`
}

// Summary totals a batch of results.
type Summary struct {
	SourcesScraped    int `json:"sourcesScraped"`
	SourcesSuccessful int `json:"sourcesSuccessful"`
	TotalArticles     int `json:"totalArticles"`
}

// Status is the scraping status report.
type Status struct {
	Sources  []store.SourceStatus `json:"sources"`
	Settings store.Settings       `json:"settings"`
}

// Orchestrator scrapes sources one at a time.
type Orchestrator struct {
	store        Store
	fetcher      PageFetcher
	detector     Detector
	notifier     Notifier
	locker       runlock.Locker
	logger       *slog.Logger
	maxArticles  int
	fullContent  bool
	fetchOptions fetcher.Options
	now          func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDetector replaces the default auto-detector.
func WithDetector(d Detector) Option {
	return func(o *Orchestrator) {
		o.detector = d
	}
}

// WithNotifier publishes every result to n.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) {
		o.notifier = n
	}
}

// WithLocker guards ScrapeAllSources with l.
func WithLocker(l runlock.Locker) Option {
	return func(o *Orchestrator) {
		o.locker = l
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxArticles sets the per-source candidate cap.
func WithMaxArticles(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxArticles = n
		}
	}
}

// WithFullContent makes the orchestrator fetch every candidate's article
// page for its content, author and better metadata.
func WithFullContent(enabled bool) Option {
	return func(o *Orchestrator) {
		o.fullContent = enabled
	}
}

// WithFetchOptions sets retry and timeout options for every fetch. The rate
// limit always comes from the source.
func WithFetchOptions(opts fetcher.Options) Option {
	return func(o *Orchestrator) {
		o.fetchOptions = opts
	}
}

// WithClock sets the time source used for last-scraped timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an Orchestrator.
func New(s Store, f PageFetcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       s,
		fetcher:     f,
		logger:      slog.Default(),
		maxArticles: DefaultMaxArticles,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.detector == nil {
		o.detector = autodetect.New(autodetect.WithLogger(o.logger))
	}

	return o
}

// ScrapeSource scrapes one source. Failures are reported in the result,
// never returned.
func (o *Orchestrator) ScrapeSource(ctx context.Context, sourceID string) ScrapeResult {
	result := o.scrapeSource(ctx, sourceID)
	o.publish(ctx, result)
	return result
}

func (o *Orchestrator) scrapeSource(ctx context.Context, sourceID string) ScrapeResult {
	source, err := o.store.GetSource(ctx, sourceID)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, store.ErrSourceNotFound) {
			msg = store.ErrSourceNotFound.Error()
		}
		o.logger.Warn("Cannot scrape source", "source_id", sourceID, "error", err)
		return ScrapeResult{SourceID: sourceID, Source: unknownSource, Error: msg}
	}

	result := ScrapeResult{
		SourceID: source.ID,
		Source:   source.Name,
	}

	selectors := source.Selectors
	if selectors == nil {
		selectors = &scraper.SelectorConfig{}
	}
	listURL := source.ListingURL()

	logger := o.logger.With("source", source.Name)
	logger.Info("Starting scrape", "url", listURL)

	candidates, err := o.listCandidates(ctx, source, selectors, listURL, logger)
	if err != nil {
		result.Error = err.Error()
		logger.Error("Scrape failed", "error", err)
		return result
	}

	saved := 0
	for _, article := range candidates {
		if o.fullContent {
			article = o.enrich(ctx, source, selectors, article, logger)
		}

		if _, err := o.store.UpsertArticle(ctx, source.ID, article); err != nil {
			logger.Warn("Failed to save article", "url", article.SourceURL, "error", err)
			continue
		}
		saved++
	}

	if err := o.store.MarkScraped(ctx, source.ID, o.now()); err != nil {
		result.ArticlesCount = saved
		result.Error = fmt.Sprintf("failed to update last scraped time: %v", err)
		logger.Error("Scrape failed", "error", err)
		return result
	}

	result.Success = true
	result.ArticlesCount = saved
	logger.Info("Scrape completed", "candidates", len(candidates), "saved", saved)

	return result
}

// listCandidates fetches the listing page and returns at most maxArticles
// teasers, falling back to auto-detection when the selectors find nothing.
func (o *Orchestrator) listCandidates(
	ctx context.Context,
	source *store.Source,
	selectors *scraper.SelectorConfig,
	listURL string,
	logger *slog.Logger,
) ([]scraper.ScrapedArticle, error) {
	html, err := o.fetch(ctx, source, listURL)
	if err != nil {
		return nil, err
	}
	logger.Debug("Fetched listing page", "bytes", len(html))

	articles, err := parser.ParseListPage(html, selectors, listURL)
	if err != nil {
		return nil, err
	}
	logger.Info("Parsed listing page", "count", len(articles))

	if len(articles) == 0 {
		logger.Info("Selectors found no articles, trying auto-detection")
		articles = o.detector.Detect(html, listURL)
		logger.Info("Auto-detection finished", "count", len(articles))
	}

	if len(articles) > o.maxArticles {
		articles = articles[:o.maxArticles]
	}
	return articles, nil
}

// enrich merges the article page into a teaser. The page's title, image and
// date win; content and author only come from the page. Fetch failures
// leave the teaser unchanged.
func (o *Orchestrator) enrich(
	ctx context.Context,
	source *store.Source,
	selectors *scraper.SelectorConfig,
	teaser scraper.ScrapedArticle,
	logger *slog.Logger,
) scraper.ScrapedArticle {
	html, err := o.fetch(ctx, source, teaser.SourceURL)
	if err != nil {
		logger.Info("Could not fetch full content", "url", teaser.SourceURL, "error", err)
		return teaser
	}

	page, err := parser.ParseArticlePage(html, selectors, teaser.SourceURL)
	if err != nil {
		logger.Info("Could not parse article page", "url", teaser.SourceURL, "error", err)
		return teaser
	}

	if page.Content == "" {
		if readable, err := parser.ExtractReadable(html, teaser.SourceURL); err == nil {
			page.Content = readable.Content
			if page.Author == "" {
				page.Author = readable.Byline
			}
			if page.ImageURL == "" && parser.IsUsableImage(readable.Image) {
				page.ImageURL = parser.ResolveURL(readable.Image, teaser.SourceURL)
			}
		}
	}

	merged := teaser
	if page.Title != "" {
		merged.Title = page.Title
	}
	if page.ImageURL != "" {
		merged.ImageURL = page.ImageURL
	}
	if page.PublishedAt != nil {
		merged.PublishedAt = page.PublishedAt
	}
	merged.Content = page.Content
	merged.Author = page.Author

	return merged
}

func (o *Orchestrator) fetch(ctx context.Context, source *store.Source, rawURL string) (string, error) {
	opts := o.fetchOptions
	opts.RateLimit = source.RateLimitInterval()
	return o.fetcher.FetchPage(ctx, rawURL, opts)
}

// ScrapeAllSources scrapes every active source in turn. One source failing
// does not stop the others. When a locker is configured and another run
// holds it, runlock.ErrLocked is returned.
func (o *Orchestrator) ScrapeAllSources(ctx context.Context) ([]ScrapeResult, error) {
	if o.locker != nil {
		release, err := o.locker.Lock(ctx)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				o.logger.Warn("Failed to release scrape lock", "error", err)
			}
		}()
	}

	sources, err := o.store.ListSources(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	o.logger.Info("Starting scrape for all sources", "count", len(sources))

	results := make([]ScrapeResult, 0, len(sources))
	for _, source := range sources {
		results = append(results, o.ScrapeSource(ctx, source.ID))
	}

	summary := Summarize(results)
	o.logger.Info("Scrape run completed",
		"sources", summary.SourcesScraped,
		"successful", summary.SourcesSuccessful,
		"articles", summary.TotalArticles,
	)

	return results, nil
}

// Status reports every source with its article count and the global
// settings.
func (o *Orchestrator) Status(ctx context.Context) (*Status, error) {
	sources, err := o.store.SourceStatuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get source status: %w", err)
	}

	settings, err := o.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	if settings == nil {
		settings = store.DefaultSettings()
	}

	return &Status{Sources: sources, Settings: *settings}, nil
}

// Summarize totals results.
func Summarize(results []ScrapeResult) Summary {
	summary := Summary{SourcesScraped: len(results)}
	for _, r := range results {
		if r.Success {
			summary.SourcesSuccessful++
		}
		summary.TotalArticles += r.ArticlesCount
	}
	return summary
}

func (o *Orchestrator) publish(ctx context.Context, result ScrapeResult) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Publish(ctx, result); err != nil {
		o.logger.Warn("Failed to publish scrape result", "source", result.Source, "error", err)
	}
}
