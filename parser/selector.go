package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/newsharvest/scraper"
)

// MinTitleLength is the shortest text accepted as a headline.
const MinTitleLength = 10

// minSummaryLength is exclusive: summaries must be longer than this.
const minSummaryLength = 20

// ParseListPage extracts article teasers from a listing page using the
// source's selector configuration. Container selectors are tried in order
// and the first one that yields any article wins; results are never merged
// across container selectors. Links resolve against the configured base URL,
// falling back to pageURL.
func ParseListPage(html string, config *scraper.SelectorConfig, pageURL string) ([]scraper.ScrapedArticle, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return ParseListDocument(doc, config, pageURL), nil
}

// ParseListDocument is ParseListPage on an already parsed document. A nil
// config is treated as empty.
func ParseListDocument(doc *goquery.Document, config *scraper.SelectorConfig, pageURL string) []scraper.ScrapedArticle {
	if config == nil {
		config = &scraper.SelectorConfig{}
	}
	list := config.ListPage

	baseURL := config.BaseURL()
	if baseURL == "" {
		baseURL = pageURL
	}

	articles := []scraper.ScrapedArticle{}
	seen := make(map[string]bool)

	for _, containerSelector := range scraper.Chain(list.ArticleContainer) {
		doc.Find(containerSelector).Each(func(_ int, container *goquery.Selection) {
			article, ok := parseContainer(container, list, baseURL, seen)
			if ok {
				articles = append(articles, article)
			}
		})

		if len(articles) > 0 {
			break
		}
	}

	return articles
}

// parseContainer extracts a single teaser. It reports false when the
// container has no usable title or link.
func parseContainer(
	container *goquery.Selection,
	list scraper.ListPageConfig,
	baseURL string,
	seen map[string]bool,
) (scraper.ScrapedArticle, bool) {
	title := FirstText(container, list.Title, MinTitleLength)
	if title == "" {
		return scraper.ScrapedArticle{}, false
	}

	href := firstAttr(container, list.Link, "href")
	if href == "" {
		href, _ = container.Find("a[href]").First().Attr("href")
	}
	if IsPlaceholderLink(href) {
		return scraper.ScrapedArticle{}, false
	}

	sourceURL := ResolveURL(href, baseURL)
	if sourceURL == "" || seen[sourceURL] {
		return scraper.ScrapedArticle{}, false
	}
	seen[sourceURL] = true

	article := scraper.ScrapedArticle{
		Title:     title,
		SourceURL: sourceURL,
	}

	if list.Summary != "" {
		article.Summary = findSummary(container, list.Summary, title)
	}
	if list.Image != "" {
		article.ImageURL = FirstImage(container, list.Image, baseURL)
	}
	if list.Date != "" {
		article.PublishedAt = FirstDate(container, list.Date)
	}

	return article, true
}

// FirstText walks a selector chain and returns the first whitespace
// normalized text that is at least minLength runes long.
func FirstText(scope *goquery.Selection, chain string, minLength int) string {
	for _, sel := range scraper.Chain(chain) {
		text := NormalizeSpace(scope.Find(sel).First().Text())
		if text != "" && Length(text) >= minLength {
			return text
		}
	}
	return ""
}

// firstAttr walks a selector chain and returns the first non-empty value of
// attr.
func firstAttr(scope *goquery.Selection, chain, attr string) string {
	for _, sel := range scraper.Chain(chain) {
		if value, ok := scope.Find(sel).First().Attr(attr); ok {
			if value = strings.TrimSpace(value); value != "" {
				return value
			}
		}
	}
	return ""
}

// findSummary returns the first chain match longer than the minimum that is
// not just the title repeated, cleaned and truncated.
func findSummary(scope *goquery.Selection, chain, title string) string {
	for _, sel := range scraper.Chain(chain) {
		text := strings.TrimSpace(scope.Find(sel).First().Text())
		if Length(text) > minSummaryLength && NormalizeSpace(text) != title {
			return Truncate(CleanText(text), SummaryMaxLength)
		}
	}
	return ""
}

// FirstImage walks a selector chain and returns the first usable image,
// resolved against baseURL.
func FirstImage(scope *goquery.Selection, chain, baseURL string) string {
	for _, sel := range scraper.Chain(chain) {
		src := ImageSource(scope.Find(sel).First(), LazyImageAttrs)
		if !IsUsableImage(src) {
			continue
		}
		if resolved := ResolveURL(src, baseURL); resolved != "" {
			return resolved
		}
	}
	return ""
}

// FirstDate walks a selector chain, preferring a datetime attribute over
// element text, and returns the first value that parses.
func FirstDate(scope *goquery.Selection, chain string) *time.Time {
	for _, sel := range scraper.Chain(chain) {
		el := scope.Find(sel).First()
		raw, ok := el.Attr("datetime")
		if !ok || strings.TrimSpace(raw) == "" {
			raw = el.Text()
		}
		if raw = strings.TrimSpace(raw); raw == "" {
			continue
		}
		if parsed := ParseDate(raw); parsed != nil {
			return parsed
		}
	}
	return nil
}
