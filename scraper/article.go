package scraper

import "time"

// ScrapedArticle is an article extracted from a page before it is stored.
// SourceURL is absolute and identifies the article.
type ScrapedArticle struct {
	Title       string     `json:"title"`
	Summary     string     `json:"summary,omitempty"`
	Content     string     `json:"content,omitempty"`
	SourceURL   string     `json:"sourceUrl"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	Author      string     `json:"author,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// Dedupe drops articles whose SourceURL was already seen, keeping the first
// occurrence.
func Dedupe(articles []ScrapedArticle) []ScrapedArticle {
	seen := make(map[string]bool, len(articles))
	out := make([]ScrapedArticle, 0, len(articles))
	for _, a := range articles {
		if seen[a.SourceURL] {
			continue
		}
		seen[a.SourceURL] = true
		out = append(out, a)
	}
	return out
}
