package autodetect

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/newsharvest/parser"
	"github.com/pevans/newsharvest/scraper"
)

// articleTypes are the schema.org types treated as articles.
var articleTypes = map[string]bool{
	"NewsArticle":          true,
	"Article":              true,
	"BlogPosting":          true,
	"WebPage":              true,
	"ReportageNewsArticle": true,
	"AnalysisNewsArticle":  true,
	"OpinionNewsArticle":   true,
}

// StructuredDataStrategy reads schema.org JSON-LD blocks.
type StructuredDataStrategy struct{}

func (StructuredDataStrategy) Name() string { return "structured-data" }

func (StructuredDataStrategy) Extract(page *Page) []scraper.ScrapedArticle {
	var articles []scraper.ScrapedArticle

	page.Doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			// Malformed blocks are common; skip them
			return
		}

		for _, node := range flattenLinkedData(data) {
			if article, ok := linkedDataArticle(node, page.Origin); ok {
				articles = append(articles, article)
			}
		}
	})

	return articles
}

// flattenLinkedData collects article nodes from arrays, ItemList wrappers
// and @graph containers. Entries of an ItemList are kept whatever their
// type.
func flattenLinkedData(data any) []map[string]any {
	switch v := data.(type) {
	case []any:
		var nodes []map[string]any
		for _, item := range v {
			nodes = append(nodes, flattenLinkedData(item)...)
		}
		return nodes

	case map[string]any:
		if hasType(v, "ItemList") {
			elements, _ := v["itemListElement"].([]any)
			nodes := make([]map[string]any, 0, len(elements))
			for _, el := range elements {
				entry, ok := el.(map[string]any)
				if !ok {
					continue
				}
				if inner, ok := entry["item"].(map[string]any); ok {
					entry = inner
				}
				nodes = append(nodes, entry)
			}
			return nodes
		}

		for t := range articleTypes {
			if hasType(v, t) {
				return []map[string]any{v}
			}
		}

		if graph, ok := v["@graph"].([]any); ok {
			return flattenLinkedData(graph)
		}
	}

	return nil
}

// hasType reports whether node declares want as its @type, which may be a
// string or an array of strings.
func hasType(node map[string]any, want string) bool {
	switch t := node["@type"].(type) {
	case string:
		return t == want
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func linkedDataArticle(node map[string]any, origin string) (scraper.ScrapedArticle, bool) {
	title := parser.NormalizeSpace(firstString(node, "headline", "name"))
	if parser.Length(title) < parser.MinTitleLength {
		return scraper.ScrapedArticle{}, false
	}

	rawURL := stringField(node, "url")
	if rawURL == "" {
		switch entity := node["mainEntityOfPage"].(type) {
		case string:
			rawURL = entity
		case map[string]any:
			rawURL = stringField(entity, "@id")
		}
	}
	sourceURL := parser.ResolveURL(rawURL, origin)
	if sourceURL == "" {
		return scraper.ScrapedArticle{}, false
	}

	article := scraper.ScrapedArticle{
		Title:     title,
		Summary:   parser.Truncate(parser.CleanText(stringField(node, "description")), parser.SummaryMaxLength),
		SourceURL: sourceURL,
		Author:    linkedDataAuthor(node["author"]),
	}

	if image := linkedDataImage(node["image"]); parser.IsUsableImage(image) {
		article.ImageURL = parser.ResolveURL(image, origin)
	}

	if published := stringField(node, "datePublished"); published != "" {
		article.PublishedAt = parser.ParseDate(published)
	}

	return article, true
}

// linkedDataImage accepts a URL string, an ImageObject or an array of
// either.
func linkedDataImage(v any) string {
	switch img := v.(type) {
	case string:
		return strings.TrimSpace(img)
	case []any:
		if len(img) > 0 {
			return linkedDataImage(img[0])
		}
	case map[string]any:
		return stringField(img, "url")
	}
	return ""
}

// linkedDataAuthor accepts a name string, a Person object or an array of
// either.
func linkedDataAuthor(v any) string {
	switch author := v.(type) {
	case string:
		return parser.NormalizeSpace(author)
	case []any:
		if len(author) > 0 {
			return linkedDataAuthor(author[0])
		}
	case map[string]any:
		return parser.NormalizeSpace(stringField(author, "name"))
	}
	return ""
}

// stringField returns node[key] when it is a string.
func stringField(node map[string]any, key string) string {
	s, _ := node[key].(string)
	return strings.TrimSpace(s)
}

// firstString returns the first non-empty string field among keys.
func firstString(node map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := stringField(node, key); s != "" {
			return s
		}
	}
	return ""
}
