package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/newsharvest/scraper"
)

// MinContentLength is exclusive: extracted content must be longer than this.
const MinContentLength = 100

// contentNoise is always stripped from article content.
const contentNoise = "script, style, iframe, .ad, .advertisement, .social-share, noscript"

// Author names outside this rune range are treated as selector noise.
const (
	minAuthorLength = 3
	maxAuthorLength = 99
)

// ParseArticlePage extracts the full details of a single article page using
// the source's articlePage selectors. Fields that no selector yields are left
// empty. Images resolve against the configured base URL, falling back to
// pageURL.
func ParseArticlePage(html string, config *scraper.SelectorConfig, pageURL string) (*scraper.ScrapedArticle, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return ParseArticleDocument(doc, config, pageURL), nil
}

// ParseArticleDocument is ParseArticlePage on an already parsed document.
// A nil config is treated as empty.
// The document is modified: noise is removed from the content element.
func ParseArticleDocument(doc *goquery.Document, config *scraper.SelectorConfig, pageURL string) *scraper.ScrapedArticle {
	if config == nil {
		config = &scraper.SelectorConfig{}
	}
	page := config.ArticlePage

	baseURL := config.BaseURL()
	if baseURL == "" {
		baseURL = pageURL
	}

	article := &scraper.ScrapedArticle{
		SourceURL: pageURL,
	}

	// Title
	article.Title = FirstText(doc.Selection, page.Title, MinTitleLength)

	// Content
	article.Content = extractContent(doc, page.Content, config.ContentCleanup())

	// Image
	if page.Image != "" {
		article.ImageURL = FirstImage(doc.Selection, page.Image, baseURL)
	}

	// Published date
	if page.Date != "" {
		article.PublishedAt = FirstDate(doc.Selection, page.Date)
	}

	// Author
	if page.Author != "" {
		article.Author = findAuthor(doc.Selection, page.Author)
	}

	return article
}

// extractContent returns the inner HTML of the first content selector whose
// cleaned markup is long enough.
func extractContent(doc *goquery.Document, chain string, cleanup []string) string {
	for _, sel := range scraper.Chain(chain) {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}

		el.Find(contentNoise).Remove()
		for _, extra := range cleanup {
			el.Find(extra).Remove()
		}

		content, err := el.Html()
		if err != nil {
			continue
		}
		if content = strings.TrimSpace(content); Length(content) > MinContentLength {
			return content
		}
	}
	return ""
}

// findAuthor returns the first chain match with a plausible name length.
func findAuthor(scope *goquery.Selection, chain string) string {
	for _, sel := range scraper.Chain(chain) {
		author := NormalizeSpace(scope.Find(sel).First().Text())
		if n := Length(author); n >= minAuthorLength && n <= maxAuthorLength {
			return author
		}
	}
	return ""
}
