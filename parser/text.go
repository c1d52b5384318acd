package parser

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// SummaryMaxLength caps summaries taken from listing pages.
const SummaryMaxLength = 300

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// NormalizeSpace collapses runs of whitespace into single spaces and trims.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CleanText strips markup and entities from s and normalizes whitespace.
func CleanText(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return NormalizeSpace(s)
}

// Truncate shortens s to at most max runes.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max]))
}

// Length returns the number of runes in s.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}
