package parser

import (
	"net/url"
	"strings"
)

// ResolveURL resolves href against base and returns an absolute URL. It
// returns "" when href is empty or cannot be made absolute.
func ResolveURL(href, base string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}

	if base == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil || !baseURL.IsAbs() {
		return ""
	}

	return baseURL.ResolveReference(ref).String()
}

// IsPlaceholderLink reports whether href points nowhere useful.
func IsPlaceholderLink(href string) bool {
	href = strings.TrimSpace(href)
	return href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:")
}

// Origin returns scheme://host of rawURL, or "" when it has no host.
func Origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
