package autodetect

import (
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/pevans/newsharvest/parser"
	"github.com/pevans/newsharvest/scraper"
)

const feedName = "feed"

// IsFeed reports whether body is an RSS, Atom or JSON feed rather than an
// HTML page.
func IsFeed(body string) bool {
	return gofeed.DetectFeedType(strings.NewReader(body)) != gofeed.FeedTypeUnknown
}

// FeedStrategy handles listing URLs that serve a feed instead of HTML. It
// returns nothing for ordinary pages.
type FeedStrategy struct{}

func (FeedStrategy) Name() string { return feedName }

func (FeedStrategy) Extract(page *Page) []scraper.ScrapedArticle {
	if !IsFeed(page.HTML) {
		return nil
	}

	feed, err := gofeed.NewParser().ParseString(page.HTML)
	if err != nil {
		return nil
	}

	articles := make([]scraper.ScrapedArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		if article, ok := feedItemToArticle(item, page.URL); ok {
			articles = append(articles, article)
		}
	}
	return articles
}

// feedItemToArticle maps a feed entry. gofeed normalizes RSS and Atom into
// the same item shape.
func feedItemToArticle(item *gofeed.Item, pageURL string) (scraper.ScrapedArticle, bool) {
	title := parser.NormalizeSpace(item.Title)
	if parser.Length(title) < parser.MinTitleLength {
		return scraper.ScrapedArticle{}, false
	}

	sourceURL := parser.ResolveURL(item.Link, pageURL)
	if sourceURL == "" {
		return scraper.ScrapedArticle{}, false
	}

	article := scraper.ScrapedArticle{
		Title:     title,
		Summary:   parser.Truncate(parser.CleanText(item.Description), parser.SummaryMaxLength),
		Content:   strings.TrimSpace(item.Content),
		SourceURL: sourceURL,
		ImageURL:  feedImage(item, pageURL),
		Author:    feedAuthor(item),
	}

	// Published, else updated
	if item.PublishedParsed != nil {
		published := *item.PublishedParsed
		article.PublishedAt = &published
	} else if item.UpdatedParsed != nil {
		updated := *item.UpdatedParsed
		article.PublishedAt = &updated
	}

	return article, true
}

func feedImage(item *gofeed.Item, pageURL string) string {
	if item.Image != nil && parser.IsUsableImage(item.Image.URL) {
		return parser.ResolveURL(item.Image.URL, pageURL)
	}
	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") && parser.IsUsableImage(enc.URL) {
			return parser.ResolveURL(enc.URL, pageURL)
		}
	}
	return ""
}

func feedAuthor(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return parser.NormalizeSpace(item.Author.Name)
	}
	for _, author := range item.Authors {
		if author != nil && author.Name != "" {
			return parser.NormalizeSpace(author.Name)
		}
	}
	// Dublin Core creator
	if item.DublinCoreExt != nil {
		for _, creator := range item.DublinCoreExt.Creator {
			if creator != "" {
				return parser.NormalizeSpace(creator)
			}
		}
	}
	return ""
}
