package autodetect

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/newsharvest/parser"
	"github.com/pevans/newsharvest/scraper"
)

// Default thresholds. A strategy's result is accepted once it holds at least
// this many articles; the last strategy in the cascade accepts fewer.
const (
	DefaultMinArticles   = 2
	DefaultLastResortMin = 1
)

// Page is the input every strategy works from. Doc is parsed once and
// shared, so strategies must not modify it.
type Page struct {
	HTML   string
	URL    string
	Origin string
	Doc    *goquery.Document
}

// Strategy extracts articles from a page without per-site configuration.
type Strategy interface {
	Name() string
	Extract(page *Page) []scraper.ScrapedArticle
}

// Detector runs strategies in priority order and returns the first result
// that meets its threshold. Feed documents bypass the cascade and are read
// as feeds.
type Detector struct {
	strategies    []Strategy
	minArticles   int
	lastResortMin int
	logger        *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithStrategies replaces the default cascade.
func WithStrategies(strategies ...Strategy) Option {
	return func(d *Detector) {
		d.strategies = strategies
	}
}

// WithMinArticles sets the threshold for every strategy but the last.
func WithMinArticles(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.minArticles = n
		}
	}
}

// WithLastResortMin sets the threshold for the last strategy.
func WithLastResortMin(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.lastResortMin = n
		}
	}
}

// WithoutStreamedPayload drops the streamed-payload strategy from the
// cascade.
func WithoutStreamedPayload() Option {
	return func(d *Detector) {
		kept := make([]Strategy, 0, len(d.strategies))
		for _, s := range d.strategies {
			if s.Name() != streamedPayloadName {
				kept = append(kept, s)
			}
		}
		d.strategies = kept
	}
}

// WithLogger sets the logger used to report which strategy fired.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// DefaultStrategies returns the HTML cascade in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		StructuredDataStrategy{},
		InitialStateStrategy{},
		StreamedPayloadStrategy{},
		HeuristicStrategy{},
		LinkStrategy{},
	}
}

// New creates a Detector with the default cascade.
func New(opts ...Option) *Detector {
	d := &Detector{
		strategies:    DefaultStrategies(),
		minArticles:   DefaultMinArticles,
		lastResortMin: DefaultLastResortMin,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Detect finds articles on a listing page. Strategies run in order and the
// first result meeting its threshold wins; later strategies are never run.
// Results below a strategy's threshold are discarded, so a page where no
// strategy qualifies yields an empty slice.
func (d *Detector) Detect(html, pageURL string) []scraper.ScrapedArticle {
	if IsFeed(html) {
		articles := scraper.Dedupe(FeedStrategy{}.Extract(&Page{HTML: html, URL: pageURL}))
		d.report(feedName, pageURL, len(articles))
		return articles
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		d.logger.Warn("Auto-detect could not parse page", "url", pageURL, "error", err)
		return []scraper.ScrapedArticle{}
	}

	page := &Page{
		HTML:   html,
		URL:    pageURL,
		Origin: parser.Origin(pageURL),
		Doc:    doc,
	}

	for i, strategy := range d.strategies {
		articles := scraper.Dedupe(strategy.Extract(page))

		threshold := d.minArticles
		if i == len(d.strategies)-1 {
			threshold = d.lastResortMin
		}

		if len(articles) >= threshold {
			d.report(strategy.Name(), pageURL, len(articles))
			return articles
		}
	}

	d.logger.Info("No articles found with any strategy", "url", pageURL)
	return []scraper.ScrapedArticle{}
}

func (d *Detector) report(name, pageURL string, count int) {
	if name == streamedPayloadName {
		d.logger.Warn("Auto-detect used streamed payload strategy", "url", pageURL, "count", count)
		return
	}
	d.logger.Info("Auto-detect found articles", "strategy", name, "url", pageURL, "count", count)
}
