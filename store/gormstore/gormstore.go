// Package gormstore implements store.Store on Postgres through gorm.
package gormstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/pevans/newsharvest/scraper"
	"github.com/pevans/newsharvest/store"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const settingsID = "global"

// Store implements store.Store on a gorm connection.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// Open connects to Postgres, applies pending migrations and returns a
// Store.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}

	if err := RunMigrations(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return New(db), nil
}

// New wraps an open gorm connection whose schema is already current.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// RunMigrations applies all pending migrations to the database.
func RunMigrations(db *sql.DB) error {
	driver, err := migratepostgres.WithInstance(db, &migratepostgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CreateSource creates a new source.
func (s *Store) CreateSource(ctx context.Context, in store.NewSource) (*store.Source, error) {
	selectors := in.Selectors
	if selectors == nil {
		selectors = &scraper.SelectorConfig{}
	}
	data, err := json.Marshal(selectors)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal selectors: %w", err)
	}

	rateLimit := in.RateLimit
	if rateLimit <= 0 {
		rateLimit = store.DefaultRateLimit
	}

	row := sourceRow{
		ID:        uuid.New().String(),
		Name:      in.Name,
		URL:       in.URL,
		IsActive:  in.IsActive,
		Selectors: string(data),
		RateLimit: rateLimit,
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateURL
		}
		return nil, fmt.Errorf("failed to insert source: %w", err)
	}

	return toSource(row)
}

// GetSource retrieves a source by ID.
func (s *Store) GetSource(ctx context.Context, id string) (*store.Source, error) {
	var row sourceRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query source: %w", err)
	}
	return toSource(row)
}

// ListSources lists sources by name, optionally only the active ones.
func (s *Store) ListSources(ctx context.Context, activeOnly bool) ([]store.Source, error) {
	query := s.db.WithContext(ctx).Order("name")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var rows []sourceRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}

	sources := make([]store.Source, 0, len(rows))
	for _, row := range rows {
		source, err := toSource(row)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *source)
	}
	return sources, nil
}

// MarkScraped records when a source was last scraped.
func (s *Store) MarkScraped(ctx context.Context, id string, at time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&sourceRow{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_scraped_at": at,
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update source: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrSourceNotFound
	}
	return nil
}

// UpsertArticle stores article keyed by its source URL. It reports whether
// a row was created.
func (s *Store) UpsertArticle(ctx context.Context, sourceID string, article scraper.ScrapedArticle) (bool, error) {
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		var existing articleRow
		err := tx.Where("source_url = ?", article.SourceURL).First(&existing).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			row := articleRow{
				ID:          uuid.New().String(),
				Title:       article.Title,
				Summary:     optional(article.Summary),
				Content:     optional(article.Content),
				SourceURL:   article.SourceURL,
				ImageURL:    optional(article.ImageURL),
				Author:      optional(article.Author),
				PublishedAt: article.PublishedAt,
				SourceID:    sourceID,
				ScrapedAt:   now,
				CreatedAt:   now,
			}
			if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
				return fmt.Errorf("failed to insert article: %w", err)
			}
			created = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to query article: %w", err)
		}

		// Empty optional fields keep what is stored
		updates := map[string]any{
			"title":      article.Title,
			"scraped_at": now,
		}
		setIfPresent(updates, "summary", article.Summary)
		setIfPresent(updates, "content", article.Content)
		setIfPresent(updates, "image_url", article.ImageURL)
		setIfPresent(updates, "author", article.Author)
		if article.PublishedAt != nil {
			updates["published_at"] = *article.PublishedAt
		}

		if err := tx.Model(&articleRow{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update article: %w", err)
		}
		return nil
	})

	return created, err
}

// GetArticle retrieves an article by ID.
func (s *Store) GetArticle(ctx context.Context, id string) (*store.Article, error) {
	var row articleRow
	err := s.db.WithContext(ctx).Preload("Source").Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrArticleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query article: %w", err)
	}

	article := toArticle(row)
	return &article, nil
}

// ListArticles returns a page of articles, most recently published first.
func (s *Store) ListArticles(ctx context.Context, filter store.ArticleFilter) (*store.ArticlePage, error) {
	filter = filter.Normalize()

	// Each query needs its own statement
	scoped := func() *gorm.DB {
		query := s.db.WithContext(ctx).Model(&articleRow{})
		if filter.SourceID != "" {
			query = query.Where("source_id = ?", filter.SourceID)
		}
		return query
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count articles: %w", err)
	}

	var rows []articleRow
	err := scoped().
		Preload("Source").
		Order("published_at DESC NULLS LAST").
		Order("scraped_at DESC").
		Limit(filter.PageSize).
		Offset(filter.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}

	items := make([]store.Article, 0, len(rows))
	for _, row := range rows {
		items = append(items, toArticle(row))
	}

	return store.NewArticlePage(items, int(total), filter), nil
}

// GetSettings returns the global settings, or the defaults if none are
// saved.
func (s *Store) GetSettings(ctx context.Context) (*store.Settings, error) {
	var row settingsRow
	err := s.db.WithContext(ctx).Where("id = ?", settingsID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.DefaultSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}

	return &store.Settings{
		ScrapeInterval:   row.ScrapeInterval,
		EnableAutoScrape: row.EnableAutoScrape,
	}, nil
}

// UpdateSettings saves the global settings.
func (s *Store) UpdateSettings(ctx context.Context, settings store.Settings) (*store.Settings, error) {
	row := settingsRow{
		ID:               settingsID,
		ScrapeInterval:   settings.ScrapeInterval,
		EnableAutoScrape: settings.EnableAutoScrape,
		UpdatedAt:        time.Now(),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"scrape_interval", "enable_auto_scrape", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}

	return &settings, nil
}

// SourceStatuses lists every source with its article count.
func (s *Store) SourceStatuses(ctx context.Context) ([]store.SourceStatus, error) {
	var rows []statusRow
	err := s.db.WithContext(ctx).Raw(`
		SELECT s.id, s.name, s.is_active, s.last_scraped_at, COUNT(a.id) AS article_count
		FROM sources s
		LEFT JOIN articles a ON a.source_id = s.id
		GROUP BY s.id, s.name, s.is_active, s.last_scraped_at
		ORDER BY s.name
	`).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query source status: %w", err)
	}

	statuses := make([]store.SourceStatus, 0, len(rows))
	for _, row := range rows {
		statuses = append(statuses, store.SourceStatus{
			ID:            row.ID,
			Name:          row.Name,
			IsActive:      row.IsActive,
			LastScrapedAt: row.LastScrapedAt,
			ArticleCount:  row.ArticleCount,
		})
	}
	return statuses, nil
}

func toSource(row sourceRow) (*store.Source, error) {
	selectors, err := scraper.ParseSelectorConfig(row.Selectors)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal selectors: %w", err)
	}

	return &store.Source{
		ID:            row.ID,
		Name:          row.Name,
		URL:           row.URL,
		IsActive:      row.IsActive,
		Selectors:     selectors,
		RateLimit:     row.RateLimit,
		LastScrapedAt: row.LastScrapedAt,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}, nil
}

func toArticle(row articleRow) store.Article {
	article := store.Article{
		ID:          row.ID,
		Title:       row.Title,
		Summary:     deref(row.Summary),
		Content:     deref(row.Content),
		SourceURL:   row.SourceURL,
		ImageURL:    deref(row.ImageURL),
		Author:      deref(row.Author),
		PublishedAt: row.PublishedAt,
		SourceID:    row.SourceID,
		ScrapedAt:   row.ScrapedAt,
		CreatedAt:   row.CreatedAt,
	}
	if row.Source.ID != "" {
		article.Source = &store.SourceRef{
			ID:   row.Source.ID,
			Name: row.Source.Name,
			URL:  row.Source.URL,
		}
	}
	return article
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func setIfPresent(updates map[string]any, column, value string) {
	if value != "" {
		updates[column] = value
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate key")
}
