package store

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
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pevans/newsharvest/scraper"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// settingsID is the key of the single global settings row.
const settingsID = "global"

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := migrateSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// migrateSQLite brings the schema up to date.
func migrateSQLite(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite3 driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateSource creates a new source.
func (s *SQLiteStore) CreateSource(ctx context.Context, in NewSource) (*Source, error) {
	now := time.Now().UTC()

	source := &Source{
		ID:        uuid.New().String(),
		Name:      in.Name,
		URL:       in.URL,
		IsActive:  in.IsActive,
		Selectors: in.Selectors,
		RateLimit: in.RateLimit,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if source.Selectors == nil {
		source.Selectors = &scraper.SelectorConfig{}
	}
	if source.RateLimit <= 0 {
		source.RateLimit = DefaultRateLimit
	}

	selectors, err := json.Marshal(source.Selectors)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal selectors: %w", err)
	}

	query := `
		INSERT INTO sources (
			id, name, url, is_active, selectors, rate_limit, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		source.ID,
		source.Name,
		source.URL,
		source.IsActive,
		string(selectors),
		source.RateLimit,
		formatTime(&source.CreatedAt),
		formatTime(&source.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateURL
		}
		return nil, fmt.Errorf("failed to insert source: %w", err)
	}

	return source, nil
}

const sourceColumns = `id, name, url, is_active, selectors, rate_limit, last_scraped_at, created_at, updated_at`

// GetSource retrieves a source by ID.
func (s *SQLiteStore) GetSource(ctx context.Context, id string) (*Source, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+sourceColumns+" FROM sources WHERE id = ?", id)

	source, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSourceNotFound
	}
	if err != nil {
		return nil, err
	}
	return source, nil
}

// ListSources lists sources by name, optionally only the active ones.
func (s *SQLiteStore) ListSources(ctx context.Context, activeOnly bool) ([]Source, error) {
	query := "SELECT " + sourceColumns + " FROM sources"
	if activeOnly {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	sources := []Source{}
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sources: %w", err)
	}
	return sources, nil
}

// MarkScraped records when a source was last scraped.
func (s *SQLiteStore) MarkScraped(ctx context.Context, id string, at time.Time) error {
	now := time.Now()
	result, err := s.db.ExecContext(ctx,
		"UPDATE sources SET last_scraped_at = ?, updated_at = ? WHERE id = ?",
		formatTime(&at), formatTime(&now), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSourceNotFound
	}
	return nil
}

// UpsertArticle stores article keyed by its source URL. A new row takes
// every field and sourceID; an existing row keeps its source and has its
// title, scrape time and any non-empty optional field replaced. It reports
// whether a row was created.
func (s *SQLiteStore) UpsertArticle(ctx context.Context, sourceID string, article scraper.ScrapedArticle) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()

	var existingID string
	err = tx.QueryRowContext(ctx, "SELECT id FROM articles WHERE source_url = ?", article.SourceURL).Scan(&existingID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO articles (
				id, title, summary, content, source_url, image_url, author,
				published_at, source_id, scraped_at, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			uuid.New().String(),
			article.Title,
			nullString(article.Summary),
			nullString(article.Content),
			article.SourceURL,
			nullString(article.ImageURL),
			nullString(article.Author),
			formatTime(article.PublishedAt),
			sourceID,
			formatTime(&now),
			formatTime(&now),
		)
		if err != nil {
			return false, fmt.Errorf("failed to insert article: %w", err)
		}

	case err != nil:
		return false, fmt.Errorf("failed to query article: %w", err)

	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE articles SET
				title = ?,
				summary = COALESCE(?, summary),
				content = COALESCE(?, content),
				image_url = COALESCE(?, image_url),
				author = COALESCE(?, author),
				published_at = COALESCE(?, published_at),
				scraped_at = ?
			WHERE id = ?
		`,
			article.Title,
			nullString(article.Summary),
			nullString(article.Content),
			nullString(article.ImageURL),
			nullString(article.Author),
			formatTime(article.PublishedAt),
			formatTime(&now),
			existingID,
		)
		if err != nil {
			return false, fmt.Errorf("failed to update article: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit article: %w", err)
	}
	return existingID == "", nil
}

const articleSelect = `
	SELECT a.id, a.title, a.summary, a.content, a.source_url, a.image_url,
	       a.author, a.published_at, a.source_id, a.scraped_at, a.created_at,
	       s.name, s.url
	FROM articles a
	JOIN sources s ON s.id = a.source_id
`

// GetArticle retrieves an article by ID.
func (s *SQLiteStore) GetArticle(ctx context.Context, id string) (*Article, error) {
	row := s.db.QueryRowContext(ctx, articleSelect+" WHERE a.id = ?", id)

	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, err
	}
	return article, nil
}

// ListArticles returns a page of articles, most recently published first.
func (s *SQLiteStore) ListArticles(ctx context.Context, filter ArticleFilter) (*ArticlePage, error) {
	filter = filter.Normalize()

	var where string
	var args []any
	if filter.SourceID != "" {
		where = " WHERE a.source_id = ?"
		args = append(args, filter.SourceID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles a"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count articles: %w", err)
	}

	query := articleSelect + where +
		" ORDER BY a.published_at IS NULL, a.published_at DESC, a.scraped_at DESC LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(args, filter.PageSize, filter.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var items []Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate articles: %w", err)
	}

	return NewArticlePage(items, total, filter), nil
}

// GetSettings returns the global settings, or the defaults if none are
// saved.
func (s *SQLiteStore) GetSettings(ctx context.Context) (*Settings, error) {
	settings := &Settings{}
	err := s.db.QueryRowContext(ctx,
		"SELECT scrape_interval, enable_auto_scrape FROM settings WHERE id = ?", settingsID,
	).Scan(&settings.ScrapeInterval, &settings.EnableAutoScrape)

	if errors.Is(err, sql.ErrNoRows) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	return settings, nil
}

// UpdateSettings saves the global settings.
func (s *SQLiteStore) UpdateSettings(ctx context.Context, settings Settings) (*Settings, error) {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, scrape_interval, enable_auto_scrape, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			scrape_interval = excluded.scrape_interval,
			enable_auto_scrape = excluded.enable_auto_scrape,
			updated_at = excluded.updated_at
	`, settingsID, settings.ScrapeInterval, settings.EnableAutoScrape, formatTime(&now))
	if err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	return &settings, nil
}

// SourceStatuses lists every source with its article count.
func (s *SQLiteStore) SourceStatuses(ctx context.Context) ([]SourceStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.is_active, s.last_scraped_at, COUNT(a.id)
		FROM sources s
		LEFT JOIN articles a ON a.source_id = s.id
		GROUP BY s.id, s.name, s.is_active, s.last_scraped_at
		ORDER BY s.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query source status: %w", err)
	}
	defer rows.Close()

	statuses := []SourceStatus{}
	for rows.Next() {
		var status SourceStatus
		var lastScraped sql.NullString
		if err := rows.Scan(&status.ID, &status.Name, &status.IsActive, &lastScraped, &status.ArticleCount); err != nil {
			return nil, fmt.Errorf("failed to scan source status: %w", err)
		}
		status.LastScrapedAt = parseNullTime(lastScraped)
		statuses = append(statuses, status)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate source status: %w", err)
	}
	return statuses, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*Source, error) {
	var source Source
	var selectors string
	var lastScraped sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&source.ID, &source.Name, &source.URL, &source.IsActive,
		&selectors, &source.RateLimit, &lastScraped, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan source: %w", err)
	}

	config, err := scraper.ParseSelectorConfig(selectors)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal selectors: %w", err)
	}
	source.Selectors = config

	source.LastScrapedAt = parseNullTime(lastScraped)
	source.CreatedAt = parseTime(createdAt)
	source.UpdatedAt = parseTime(updatedAt)

	return &source, nil
}

func scanArticle(row rowScanner) (*Article, error) {
	var article Article
	var summary, content, imageURL, author, publishedAt sql.NullString
	var scrapedAt, createdAt string
	ref := &SourceRef{}

	err := row.Scan(
		&article.ID, &article.Title, &summary, &content, &article.SourceURL,
		&imageURL, &author, &publishedAt, &article.SourceID, &scrapedAt, &createdAt,
		&ref.Name, &ref.URL,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan article: %w", err)
	}

	article.Summary = summary.String
	article.Content = content.String
	article.ImageURL = imageURL.String
	article.Author = author.String
	article.PublishedAt = parseNullTime(publishedAt)
	article.ScrapedAt = parseTime(scrapedAt)
	article.CreatedAt = parseTime(createdAt)

	ref.ID = article.SourceID
	article.Source = ref

	return &article, nil
}

// isUniqueViolation matches the constraint errors of both SQLite and
// Postgres.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// timeLayout is RFC 3339 with fixed-width nanoseconds. Stored in UTC it
// sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Helper functions for time formatting
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	// Strip monotonic clock for consistent storage and comparisons
	return t.Truncate(0).UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	// Try RFC3339Nano first, fall back to RFC3339 for compatibility
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.Truncate(0)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}
