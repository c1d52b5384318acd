package autodetect

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/newsharvest/parser"
	"github.com/pevans/newsharvest/scraper"
)

// containerSelectors are tried in order; the first group of matches that
// looks like a list is used.
var containerSelectors = []string{
	"article",
	`[class*="ArticleCard"]`,
	`[class*="article-card"]`,
	`[class*="RegularCard"]`,
	`[class*="StoryCard"]`,
	`[class*="story-card"]`,
	`[class*="NewsCard"]`,
	`[class*="news-card"]`,
	`[class*="PostCard"]`,
	`[class*="post-card"]`,
	`[class*="Card__"]`,
	`[class*="card-item"]`,
	`[class*="feed-item"]`,
	`[class*="news-item"]`,
	`[class*="article-item"]`,
	`[class*="story-item"]`,
	`[class*="listing-item"]`,
	".article",
	".story",
	".post",
	".news-item",
	".card",
}

const (
	// minContainers is how many matches a selector needs to count as a list.
	minContainers = 2

	// enoughArticles stops the scan over further container selectors.
	enoughArticles = 3

	maxLinkTitleLength = 300
)

var (
	headingSelector = "h1, h2, h3, h4, h5, h6"
	titleClasses    = []string{"title", "headline"}
	summaryClasses  = []string{"summary", "excerpt", "description", "subtitle"}
	dateClasses     = []string{"date", "time", "caption"}

	// heuristicImageAttrs extends the lazy-loading attributes with data-url,
	// which card layouts use often.
	heuristicImageAttrs = []string{"data-src", "data-url", "data-lazy-src", "data-original", "src"}
)

// HeuristicStrategy scans common card and list markup.
type HeuristicStrategy struct{}

func (HeuristicStrategy) Name() string { return "heuristic" }

func (HeuristicStrategy) Extract(page *Page) []scraper.ScrapedArticle {
	var articles []scraper.ScrapedArticle
	seen := make(map[string]bool)

	for _, selector := range containerSelectors {
		elements := page.Doc.Find(selector)
		if elements.Length() < minContainers {
			continue
		}

		elements.Each(func(_ int, el *goquery.Selection) {
			if article, ok := heuristicArticle(el, page, seen); ok {
				articles = append(articles, article)
			}
		})

		if len(articles) >= enoughArticles {
			break
		}
	}

	return articles
}

func heuristicArticle(el *goquery.Selection, page *Page, seen map[string]bool) (scraper.ScrapedArticle, bool) {
	// Link
	var articleURL, title string
	el.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		resolved := parser.ResolveURL(a.AttrOr("href", ""), page.URL)
		if !IsArticleURL(resolved) || samePage(resolved, page.URL) {
			return true
		}
		articleURL = resolved
		if text := parser.NormalizeSpace(a.Text()); parser.Length(text) >= parser.MinTitleLength && parser.Length(text) < maxLinkTitleLength {
			title = text
		}
		return false
	})

	if articleURL == "" || seen[articleURL] {
		return scraper.ScrapedArticle{}, false
	}

	// Title: link text, then heading, then a title-ish class
	if title == "" {
		title = parser.NormalizeSpace(el.Find(headingSelector).First().Text())
	}
	if parser.Length(title) < parser.MinTitleLength {
		title = parser.NormalizeSpace(withClass(el, "", titleClasses).First().Text())
	}
	if parser.Length(title) < parser.MinTitleLength {
		return scraper.ScrapedArticle{}, false
	}

	seen[articleURL] = true

	article := scraper.ScrapedArticle{
		Title:     title,
		SourceURL: articleURL,
	}

	// Summary
	summary := strings.TrimSpace(withClass(el, "p", summaryClasses).First().Text())
	if parser.Length(summary) > 20 && parser.NormalizeSpace(summary) != title {
		article.Summary = parser.Truncate(parser.CleanText(summary), parser.SummaryMaxLength)
	}

	// Image
	src := parser.ImageSource(el.Find("img").First(), heuristicImageAttrs)
	if parser.IsUsableImage(src) {
		article.ImageURL = parser.ResolveURL(src, page.URL)
	}

	// Date
	dateEl := withClass(el, "time", dateClasses).First()
	raw, ok := dateEl.Attr("datetime")
	if !ok || strings.TrimSpace(raw) == "" {
		raw = dateEl.Text()
	}
	if raw = strings.TrimSpace(raw); raw != "" {
		article.PublishedAt = parser.ParseDate(raw)
	}

	return article, true
}

// withClass returns, in document order, descendants of scope that match tag
// or whose class attribute contains any of substrs, compared without case.
// An empty tag matches class only.
func withClass(scope *goquery.Selection, tag string, substrs []string) *goquery.Selection {
	selector := "[class]"
	if tag != "" {
		selector = tag + ", [class]"
	}

	return scope.Find(selector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		if tag != "" && goquery.NodeName(s) == tag {
			return true
		}
		class := strings.ToLower(s.AttrOr("class", ""))
		for _, sub := range substrs {
			if strings.Contains(class, sub) {
				return true
			}
		}
		return false
	})
}

// samePage reports whether two URLs differ only by a trailing slash.
func samePage(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}
