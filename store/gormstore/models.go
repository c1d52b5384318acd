package gormstore

import (
	"time"
)

// sourceRow maps the sources table.
type sourceRow struct {
	ID            string `gorm:"primaryKey;type:text"`
	Name          string `gorm:"type:text;not null"`
	URL           string `gorm:"type:text;not null;uniqueIndex"`
	IsActive      bool
	Selectors     string `gorm:"type:text;not null"`
	RateLimit     int
	LastScrapedAt *time.Time `gorm:"type:timestamp with time zone"`
	CreatedAt     time.Time  `gorm:"type:timestamp with time zone"`
	UpdatedAt     time.Time  `gorm:"type:timestamp with time zone"`
}

// TableName overrides the table name
func (sourceRow) TableName() string {
	return "sources"
}

// articleRow maps the articles table. Optional text columns are pointers so
// empty values are stored as NULL.
type articleRow struct {
	ID          string `gorm:"primaryKey;type:text"`
	Title       string `gorm:"type:text;not null"`
	Summary     *string
	Content     *string
	SourceURL   string `gorm:"type:text;not null;uniqueIndex"`
	ImageURL    *string
	Author      *string
	PublishedAt *time.Time `gorm:"type:timestamp with time zone"`
	SourceID    string     `gorm:"type:text;not null;index"`
	ScrapedAt   time.Time  `gorm:"type:timestamp with time zone"`
	CreatedAt   time.Time  `gorm:"type:timestamp with time zone"`

	// Relationships
	Source sourceRow `gorm:"foreignKey:SourceID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the table name
func (articleRow) TableName() string {
	return "articles"
}

// settingsRow maps the single-row settings table.
type settingsRow struct {
	ID               string `gorm:"primaryKey;type:text"`
	ScrapeInterval   int
	EnableAutoScrape bool
	UpdatedAt        time.Time `gorm:"type:timestamp with time zone"`
}

// TableName overrides the table name
func (settingsRow) TableName() string {
	return "settings"
}

// statusRow receives the source status aggregate.
type statusRow struct {
	ID            string
	Name          string
	IsActive      bool
	LastScrapedAt *time.Time
	ArticleCount  int
}
