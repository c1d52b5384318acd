package scraper

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSelectorConfig is returned when a selector configuration is
// missing a required selector.
var ErrInvalidSelectorConfig = errors.New("invalid selector config")

// SelectorConfig defines how to extract articles from a specific website.
// Every selector field holds a selector chain: a comma-separated list of
// alternatives tried in order.
type SelectorConfig struct {
	ListPage    ListPageConfig    `json:"listPage" yaml:"listPage"`
	ArticlePage ArticlePageConfig `json:"articlePage" yaml:"articlePage"`
	Transforms  *Transforms       `json:"transforms,omitempty" yaml:"transforms,omitempty"`
}

// ListPageConfig locates article teasers on a listing page.
type ListPageConfig struct {
	URL              string `json:"url" yaml:"url"`
	ArticleContainer string `json:"articleContainer" yaml:"articleContainer"`
	Title            string `json:"title" yaml:"title"`
	Link             string `json:"link" yaml:"link"`
	Summary          string `json:"summary,omitempty" yaml:"summary,omitempty"`
	Image            string `json:"image,omitempty" yaml:"image,omitempty"`
	Date             string `json:"date,omitempty" yaml:"date,omitempty"`
}

// ArticlePageConfig extracts metadata from an individual article page.
type ArticlePageConfig struct {
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`
	Image   string `json:"image,omitempty" yaml:"image,omitempty"`
	Date    string `json:"date,omitempty" yaml:"date,omitempty"`
	Author  string `json:"author,omitempty" yaml:"author,omitempty"`
}

// Transforms adjusts extracted values.
type Transforms struct {
	// BaseURL resolves relative links instead of the page URL.
	BaseURL string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	// ContentCleanup lists selectors stripped from article content.
	ContentCleanup []string `json:"contentCleanup,omitempty" yaml:"contentCleanup,omitempty"`
}

// BaseURL returns the configured base URL, or "" when none is set.
func (c *SelectorConfig) BaseURL() string {
	if c == nil || c.Transforms == nil {
		return ""
	}
	return c.Transforms.BaseURL
}

// ContentCleanup returns the configured cleanup selectors.
func (c *SelectorConfig) ContentCleanup() []string {
	if c == nil || c.Transforms == nil {
		return nil
	}
	return c.Transforms.ContentCleanup
}

// Validate checks that the selectors needed for list parsing are present.
func (c *SelectorConfig) Validate() error {
	if strings.TrimSpace(c.ListPage.ArticleContainer) == "" {
		return fmt.Errorf("%w: listPage.articleContainer is required", ErrInvalidSelectorConfig)
	}
	if strings.TrimSpace(c.ListPage.Title) == "" {
		return fmt.Errorf("%w: listPage.title is required", ErrInvalidSelectorConfig)
	}
	if strings.TrimSpace(c.ListPage.Link) == "" {
		return fmt.Errorf("%w: listPage.link is required", ErrInvalidSelectorConfig)
	}
	return nil
}

// ParseSelectorConfig decodes a serialized selector configuration.
func ParseSelectorConfig(data string) (*SelectorConfig, error) {
	var config SelectorConfig
	if err := json.Unmarshal([]byte(data), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal selector config: %w", err)
	}
	return &config, nil
}

// Chain splits a selector chain into its trimmed, non-empty alternatives.
func Chain(selectors string) []string {
	var chain []string
	for _, part := range strings.Split(selectors, ",") {
		if part = strings.TrimSpace(part); part != "" {
			chain = append(chain, part)
		}
	}
	return chain
}
