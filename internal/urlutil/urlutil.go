package urlutil

import (
	"net/url"
	"regexp"
	"strings"
)

const DefaultBase = "https://marleyspoon.de"

const menuSegment = "/menu/"

// recipeDetailPattern requires a non-empty segment directly after /menu/.
var recipeDetailPattern = regexp.MustCompile(`/menu/[^/]+`)

var schemePattern = regexp.MustCompile(`(?i)^https?://`)

// IsRecipePath reports whether an anchor href points at a recipe detail page
// rather than the menu index or a week tab. Only the path is inspected, so
// "/menu/?week=2" is not a recipe.
func IsRecipePath(href string) bool {
	href = strings.TrimSpace(href)
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	if href == "" {
		return false
	}
	if !strings.Contains(href, menuSegment) {
		return false
	}
	if strings.HasSuffix(href, "/menu") || strings.HasSuffix(href, "/menu/") {
		return false
	}
	return recipeDetailPattern.MatchString(href)
}

// Resolve turns href into an absolute URL against base.
func Resolve(base *url.URL, href string) string {
	if strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") {
		return ""
	}
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return u.String()
}

// StripScheme removes a leading http:// or https://.
func StripScheme(raw string) string {
	return schemePattern.ReplaceAllString(raw, "")
}

// IsAbsoluteHTTP reports whether raw starts with an http(s) scheme.
func IsAbsoluteHTTP(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), "http")
}

func ParseBase(raw string) (*url.URL, error) {
	if raw == "" {
		raw = DefaultBase
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return u, nil
}

func NormalizeHost(host string) string {
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	return host
}

func HostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "default"
	}
	return NormalizeHost(u.Hostname())
}
