package autodetect

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/newsharvest/parser"
	"github.com/pevans/newsharvest/scraper"
)

const (
	minLinkTextLength = 15
	maxLinkTextLength = 300
	minLinkTextWords  = 3
)

var linkImageAttrs = []string{"data-src", "data-url", "src"}

// LinkStrategy is the last resort: every anchor whose URL looks like an
// article and whose text reads like a headline.
type LinkStrategy struct{}

func (LinkStrategy) Name() string { return "links" }

func (LinkStrategy) Extract(page *Page) []scraper.ScrapedArticle {
	var articles []scraper.ScrapedArticle
	seen := make(map[string]bool)

	page.Doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		resolved := parser.ResolveURL(a.AttrOr("href", ""), page.URL)
		if !IsArticleURL(resolved) || seen[resolved] || samePage(resolved, page.URL) {
			return
		}

		text := parser.NormalizeSpace(a.Text())
		if n := parser.Length(text); n < minLinkTextLength || n > maxLinkTextLength {
			return
		}
		if len(strings.Fields(text)) < minLinkTextWords {
			return
		}

		seen[resolved] = true

		article := scraper.ScrapedArticle{
			Title:     text,
			SourceURL: resolved,
		}

		// Nearby image
		if block := a.Closest("div, li, section"); block.Length() > 0 {
			src := parser.ImageSource(block.Find("img").First(), linkImageAttrs)
			if parser.IsUsableImage(src) {
				article.ImageURL = parser.ResolveURL(src, page.URL)
			}
		}

		articles = append(articles, article)
	})

	return articles
}
