package parser

import (
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// Readable is the main content of a page as identified by readability
// scoring.
type Readable struct {
	Title   string
	Content string
	Byline  string
	Image   string
}

// ExtractReadable runs readability over an article page. It is the fallback
// for pages whose content selectors no longer match.
func ExtractReadable(html, pageURL string) (*Readable, error) {
	if strings.TrimSpace(html) == "" {
		return nil, fmt.Errorf("HTML data is empty")
	}

	var parsedURL *url.URL
	if pageURL != "" {
		u, err := url.Parse(pageURL)
		if err != nil {
			return nil, fmt.Errorf("invalid page URL: %w", err)
		}
		parsedURL = u
	}

	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract content: %w", err)
	}

	content := strings.TrimSpace(article.Content)
	if content == "" {
		return nil, fmt.Errorf("no content extracted from HTML data")
	}

	return &Readable{
		Title:   NormalizeSpace(article.Title),
		Content: content,
		Byline:  NormalizeSpace(article.Byline),
		Image:   article.Image,
	}, nil
}
