// Package store persists sources, articles and global settings.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/pevans/newsharvest/scraper"
)

// Custom errors for store operations
var (
	ErrSourceNotFound  = errors.New("source not found")
	ErrArticleNotFound = errors.New("article not found")
	ErrDuplicateURL    = errors.New("source with this URL already exists")
)

// Defaults applied when no value has been stored.
const (
	DefaultRateLimit        = 2000
	DefaultScrapeInterval   = 30
	DefaultEnableAutoScrape = true

	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Store is the persistence contract shared by the SQLite and Postgres
// backends.
type Store interface {
	CreateSource(ctx context.Context, source NewSource) (*Source, error)
	GetSource(ctx context.Context, id string) (*Source, error)
	ListSources(ctx context.Context, activeOnly bool) ([]Source, error)
	MarkScraped(ctx context.Context, id string, at time.Time) error

	UpsertArticle(ctx context.Context, sourceID string, article scraper.ScrapedArticle) (bool, error)
	GetArticle(ctx context.Context, id string) (*Article, error)
	ListArticles(ctx context.Context, filter ArticleFilter) (*ArticlePage, error)

	GetSettings(ctx context.Context) (*Settings, error)
	UpdateSettings(ctx context.Context, settings Settings) (*Settings, error)

	SourceStatuses(ctx context.Context) ([]SourceStatus, error)
	Ping(ctx context.Context) error
	Close() error
}

// Source is a site scraped for articles.
type Source struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	URL           string                  `json:"url"`
	IsActive      bool                    `json:"isActive"`
	Selectors     *scraper.SelectorConfig `json:"selectors"`
	RateLimit     int                     `json:"rateLimit"` // milliseconds
	LastScrapedAt *time.Time              `json:"lastScrapedAt"`
	CreatedAt     time.Time               `json:"createdAt"`
	UpdatedAt     time.Time               `json:"updatedAt"`
}

// RateLimitInterval returns the configured pacing, or the default.
func (s *Source) RateLimitInterval() time.Duration {
	if s.RateLimit <= 0 {
		return DefaultRateLimit * time.Millisecond
	}
	return time.Duration(s.RateLimit) * time.Millisecond
}

// ListingURL is the page scraped for teasers: the configured list page, or
// the source's own URL.
func (s *Source) ListingURL() string {
	if s.Selectors != nil && s.Selectors.ListPage.URL != "" {
		return s.Selectors.ListPage.URL
	}
	return s.URL
}

// NewSource holds the fields needed to create a source.
type NewSource struct {
	Name      string                  `json:"name" yaml:"name"`
	URL       string                  `json:"url" yaml:"url"`
	IsActive  bool                    `json:"isActive" yaml:"isActive"`
	Selectors *scraper.SelectorConfig `json:"selectors" yaml:"selectors"`
	RateLimit int                     `json:"rateLimit" yaml:"rateLimit"`
}

// SourceRef is the summary of a source embedded in articles.
type SourceRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Article is a persisted article, unique by SourceURL.
type Article struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary,omitempty"`
	Content     string     `json:"content,omitempty"`
	SourceURL   string     `json:"sourceUrl"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	Author      string     `json:"author,omitempty"`
	PublishedAt *time.Time `json:"publishedAt"`
	SourceID    string     `json:"sourceId"`
	Source      *SourceRef `json:"source,omitempty"`
	ScrapedAt   time.Time  `json:"scrapedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ArticleFilter selects a page of articles, optionally for one source.
type ArticleFilter struct {
	SourceID string
	Page     int
	PageSize int
}

// Normalize applies the paging defaults and caps the page size.
func (f ArticleFilter) Normalize() ArticleFilter {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

// Offset is the number of rows skipped for this page.
func (f ArticleFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// ArticlePage is one page of articles, newest first.
type ArticlePage struct {
	Items      []Article `json:"items"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalPages int       `json:"totalPages"`
}

// NewArticlePage fills in the page metadata for items.
func NewArticlePage(items []Article, total int, filter ArticleFilter) *ArticlePage {
	if items == nil {
		items = []Article{}
	}
	return &ArticlePage{
		Items:      items,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: (total + filter.PageSize - 1) / filter.PageSize,
	}
}

// Settings are the global scrape settings. They are stored and reported;
// nothing in this module schedules scrapes from them.
type Settings struct {
	ScrapeInterval   int  `json:"scrapeInterval"` // minutes
	EnableAutoScrape bool `json:"enableAutoScrape"`
}

// DefaultSettings returns the settings used before any are saved.
func DefaultSettings() *Settings {
	return &Settings{
		ScrapeInterval:   DefaultScrapeInterval,
		EnableAutoScrape: DefaultEnableAutoScrape,
	}
}

// SourceStatus summarizes a source for the scraping status report.
type SourceStatus struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	IsActive      bool       `json:"isActive"`
	LastScrapedAt *time.Time `json:"lastScrapedAt"`
	ArticleCount  int        `json:"articleCount"`
}
