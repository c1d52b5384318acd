package autodetect

import (
	"strings"

	"github.com/pevans/newsharvest/parser"
	"github.com/pevans/newsharvest/scraper"
)

// maxStateDepth bounds the search through embedded page state.
const maxStateDepth = 6

var (
	titleKeys = []string{"title", "headline"}
	linkKeys  = []string{"slug", "url", "sourceUrl", "link", "path"}
)

// InitialStateStrategy reads the JSON state a server-rendered page embeds
// for client hydration (the __NEXT_DATA__ script).
type InitialStateStrategy struct{}

func (InitialStateStrategy) Name() string { return "initial-state" }

func (InitialStateStrategy) Extract(page *Page) []scraper.ScrapedArticle {
	script := page.Doc.Find("script#__NEXT_DATA__").First()
	if script.Length() == 0 {
		return nil
	}

	tree, err := decodeTree([]byte(script.Text()))
	if err != nil {
		return nil
	}

	root, ok := tree.(*object)
	if !ok {
		return nil
	}
	if props := root.obj("props").obj("pageProps"); props != nil {
		root = props
	}

	var articles []scraper.ScrapedArticle
	for _, item := range findArticleArray(root, 0) {
		if article, ok := stateArticle(item, page.Origin); ok {
			articles = append(articles, article)
		}
	}
	return articles
}

// looksLikeArticle is the shape predicate for a state entry: a title field
// and some way to build a link.
func looksLikeArticle(o *object) bool {
	return hasAny(o, titleKeys) && hasAny(o, linkKeys)
}

func hasAny(o *object, keys []string) bool {
	for _, key := range keys {
		if o.has(key) {
			return true
		}
	}
	return false
}

// findArticleArray returns the titled entries of the first array, in
// document order, holding anything article-shaped.
func findArticleArray(v any, depth int) []*object {
	if depth > maxStateDepth || v == nil {
		return nil
	}

	switch node := v.(type) {
	case []any:
		matched := false
		for _, item := range node {
			if o, ok := item.(*object); ok && looksLikeArticle(o) {
				matched = true
				break
			}
		}
		if matched {
			entries := make([]*object, 0, len(node))
			for _, item := range node {
				if o, ok := item.(*object); ok && hasAny(o, titleKeys) {
					entries = append(entries, o)
				}
			}
			return entries
		}
		for _, item := range node {
			if found := findArticleArray(item, depth+1); len(found) > 0 {
				return found
			}
		}

	case *object:
		for _, key := range node.keys {
			if found := findArticleArray(node.values[key], depth+1); len(found) > 0 {
				return found
			}
		}
	}

	return nil
}

func stateArticle(item *object, origin string) (scraper.ScrapedArticle, bool) {
	title := parser.NormalizeSpace(item.str("title", "headline", "name"))
	if parser.Length(title) < parser.MinTitleLength {
		return scraper.ScrapedArticle{}, false
	}

	rawURL := item.str("url", "sourceUrl", "link", "path")
	if rawURL == "" {
		if slug := item.str("slug"); slug != "" && origin != "" {
			rawURL = origin + "/" + strings.TrimPrefix(slug, "/")
		}
	}
	sourceURL := parser.ResolveURL(rawURL, origin)
	if sourceURL == "" {
		return scraper.ScrapedArticle{}, false
	}

	metadata := item.obj("metadata")

	summary := item.str("summary", "subtitle", "excerpt", "description")
	if summary == "" {
		summary = metadata.str("excerpt")
	}

	article := scraper.ScrapedArticle{
		Title:     title,
		Summary:   parser.Truncate(parser.CleanText(summary), parser.SummaryMaxLength),
		SourceURL: sourceURL,
		Author:    stateAuthor(item, metadata),
	}

	image := stateImage(item, "imageUrl", "image", "thumbnail")
	if image == "" {
		image = stateImage(metadata, "media", "thumbnail", "image")
	}
	if parser.IsUsableImage(image) {
		article.ImageURL = parser.ResolveURL(image, origin)
	}

	if published := item.str("publishedAt", "datePublished"); published != "" {
		article.PublishedAt = parser.ParseDate(published)
	}

	return article, true
}

// stateImage accepts plain URL strings and objects carrying a url or src.
func stateImage(o *object, keys ...string) string {
	for _, key := range keys {
		switch v := o.get(key).(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case *object:
			if s := v.str("url", "src"); s != "" {
				return s
			}
		}
	}
	return ""
}

func stateAuthor(item, metadata *object) string {
	switch v := item.get("author").(type) {
	case string:
		if name := parser.NormalizeSpace(v); name != "" {
			return name
		}
	case *object:
		if name := v.str("name"); name != "" {
			return parser.NormalizeSpace(name)
		}
	}

	if authors, ok := metadata.get("authors").([]any); ok && len(authors) > 0 {
		if first, ok := authors[0].(*object); ok {
			return parser.NormalizeSpace(first.str("name"))
		}
	}
	return ""
}
