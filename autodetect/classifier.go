package autodetect

import (
	"net/url"
	"regexp"
	"strings"
)

// minURLLength is the shortest URL the classifier will consider.
const minURLLength = 10

// articlePathPatterns match paths that are almost always article pages.
var articlePathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/\d{4}/\d{1,2}/`),
	regexp.MustCompile(`(?i)/news/`),
	regexp.MustCompile(`(?i)/article/`),
	regexp.MustCompile(`(?i)/story/`),
	regexp.MustCompile(`(?i)/blog/`),
	regexp.MustCompile(`(?i)/post/`),
	regexp.MustCompile(`(?i)/features?/`),
	regexp.MustCompile(`(?i)/opinion/`),
	regexp.MustCompile(`(?i)/analysis/`),
	regexp.MustCompile(`(?i)/review/`),
	regexp.MustCompile(`(?i)/exclusive/`),
}

// skipPatterns match navigation, taxonomy and asset links.
var skipPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/(tag|tags|category|author|search|login|register|about|contact|privacy|terms|advertise|subscribe|faq)\b`),
	regexp.MustCompile(`(?i)\.(css|js|png|jpe?g|gif|svg|webp|pdf|zip|xml|rss)(\?|$)`),
	regexp.MustCompile(`(?i)^javascript:`),
	regexp.MustCompile(`(?i)^mailto:`),
	regexp.MustCompile(`^#`),
}

// IsArticleURL reports whether rawURL looks like a link to an individual
// article rather than navigation, a taxonomy page or a static asset.
func IsArticleURL(rawURL string) bool {
	if len(rawURL) < minURLLength {
		return false
	}

	for _, p := range skipPatterns {
		if p.MatchString(rawURL) {
			return false
		}
	}

	for _, p := range articlePathPatterns {
		if p.MatchString(rawURL) {
			return true
		}
	}

	return hasSlug(rawURL)
}

// hasSlug reports whether the last path segment reads like a hyphenated
// headline: at least three words and more than 15 characters.
func hasSlug(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return false
	}

	last := segments[len(segments)-1]
	return len(strings.Split(last, "-")) >= 3 && len(last) > 15
}
