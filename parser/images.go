package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LazyImageAttrs lists the attributes that may carry an image URL, most
// specific first. Lazy-loading attributes win over src, which often holds a
// placeholder.
var LazyImageAttrs = []string{"data-src", "data-lazy-src", "data-original", "src"}

// placeholderMarkers identify greyed-out or placeholder assets.
var placeholderMarkers = []string{"placeholder", "grey_bg"}

// ImageSource returns the first non-empty attribute of sel from attrs.
func ImageSource(sel *goquery.Selection, attrs []string) string {
	for _, attr := range attrs {
		if value, ok := sel.Attr(attr); ok {
			if value = strings.TrimSpace(value); value != "" {
				return value
			}
		}
	}
	return ""
}

// IsUsableImage reports whether src is a real image reference rather than
// an inline data URI or a placeholder asset.
func IsUsableImage(src string) bool {
	if src == "" || strings.HasPrefix(strings.ToLower(src), "data:") {
		return false
	}
	for _, marker := range placeholderMarkers {
		if strings.Contains(src, marker) {
			return false
		}
	}
	return true
}
