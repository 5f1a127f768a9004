// Package urls provides utility functions for working with URLs.
package urls

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	schemeHTTP  = "http"
	schemeHTTPS = "https"
)

var reHTTPURL = regexp.MustCompile(`https?://\S+`)

// IsURLValid checks if the given URL is valid.
func IsURLValid(raw string) bool {
	u, err := url.Parse(raw)

	return err == nil && u.Scheme != "" && u.Host != "" && (u.Scheme == schemeHTTP || u.Scheme == schemeHTTPS)
}

// Normalize trims spaces, parses and returns the URL in string format.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	return u.String()
}

// Host returns the lower-cased host of raw without a "www." prefix, or "" if raw does not parse.
func Host(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}

	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// Find returns the first http(s) URL in text, or "" when there is none.
// Trailing punctuation that usually closes a sentence is stripped.
func Find(text string) string {
	found := reHTTPURL.FindString(text)

	found = strings.TrimRight(found, `.,;:!?)]}>"'`)
	if !IsURLValid(found) {
		return ""
	}

	return found
}
