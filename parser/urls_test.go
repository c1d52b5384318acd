package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestResolveURL verifies relative, absolute and invalid references
func TestResolveURL(t *testing.T) {
	cases := []struct {
		href, base, want string
	}{
		{"/news/a", "https://example.com/markets", "https://example.com/news/a"},
		{"b", "https://example.com/news/", "https://example.com/news/b"},
		{"https://other.com/x", "https://example.com/", "https://other.com/x"},
		{"//cdn.example.com/i.jpg", "https://example.com/", "https://cdn.example.com/i.jpg"},
		{"", "https://example.com/", ""},
		{"/news/a", "", ""},
		{"/news/a", "not a url", ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ResolveURL(tc.href, tc.base), "href=%q base=%q", tc.href, tc.base)
	}
}

// TestIsPlaceholderLink verifies hash and javascript links
func TestIsPlaceholderLink(t *testing.T) {
	assert.True(t, IsPlaceholderLink("#"))
	assert.True(t, IsPlaceholderLink(" # "))
	assert.True(t, IsPlaceholderLink("javascript:void(0)"))
	assert.True(t, IsPlaceholderLink("JavaScript:go()"))
	assert.False(t, IsPlaceholderLink("#section"))
	assert.False(t, IsPlaceholderLink("/news/a"))
}

// TestOrigin verifies scheme and host extraction
func TestOrigin(t *testing.T) {
	assert.Equal(t, "https://example.com", Origin("https://example.com/news/a?x=1"))
	assert.Equal(t, "", Origin("/news/a"))
}

// TestCleanText verifies tags and entities are removed
func TestCleanText(t *testing.T) {
	assert.Equal(t, "Markets & more today", CleanText("<b>Markets</b> &amp; more\n\t today"))
}

// TestTruncate verifies truncation counts runes
func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "₹₹₹", Truncate("₹₹₹₹₹", 3))
	assert.Equal(t, 300, Length(Truncate(strings.Repeat("x", 400), SummaryMaxLength)))
}

// TestIsUsableImage verifies data URIs and placeholders are rejected
func TestIsUsableImage(t *testing.T) {
	assert.True(t, IsUsableImage("/img/a.jpg"))
	assert.False(t, IsUsableImage(""))
	assert.False(t, IsUsableImage("data:image/png;base64,AAA"))
	assert.False(t, IsUsableImage("/static/placeholder.svg"))
	assert.False(t, IsUsableImage("/static/grey_bg.png"))
}
