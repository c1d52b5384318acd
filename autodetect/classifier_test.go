package autodetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIsArticleURL_KnownPatterns verifies article path patterns are accepted
func TestIsArticleURL_KnownPatterns(t *testing.T) {
	accepted := []string{
		"https://example.com/2025/11/markets-today",
		"https://example.com/news/sensex",
		"https://example.com/article/12345",
		"https://example.com/story/abc",
		"https://example.com/blog/update",
		"https://example.com/post/99",
		"https://example.com/feature/profile",
		"https://example.com/features/profile",
		"https://example.com/opinion/column",
		"https://example.com/analysis/q3",
		"https://example.com/review/phone",
		"https://example.com/exclusive/interview",
	}

	for _, u := range accepted {
		assert.True(t, IsArticleURL(u), u)
	}
}

// TestIsArticleURL_SlugHeuristic verifies slug-like final segments are
// accepted and short ones rejected
func TestIsArticleURL_SlugHeuristic(t *testing.T) {
	assert.True(t, IsArticleURL("https://example.com/markets/rupee-hits-record-low"))
	assert.False(t, IsArticleURL("https://example.com/markets/a-b-c"))
	assert.False(t, IsArticleURL("https://example.com/markets/equities"))
	assert.False(t, IsArticleURL("https://example.com/"))
}

// TestIsArticleURL_SkipList verifies navigation and assets are rejected even
// when they also match an article pattern
func TestIsArticleURL_SkipList(t *testing.T) {
	rejected := []string{
		"short",
		"https://example.com/tag/markets-and-economy-today",
		"https://example.com/category/news/",
		"https://example.com/author/priya-sharma-writer",
		"https://example.com/search?q=news",
		"https://example.com/login",
		"https://example.com/news/chart-of-the-day.png",
		"https://example.com/news/feed.xml",
		"javascript:void(0)//news/",
		"mailto:desk@example.com/news/",
		"#/news/anchor-link-here",
	}

	for _, u := range rejected {
		assert.False(t, IsArticleURL(u), u)
	}
}
