// Package ingestion admits candidate items into the store from feeds, chat,
// manual submissions, and bulk imports.
package ingestion

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DefaultMaxURLs caps how many URLs are taken from one chat message.
const DefaultMaxURLs = 5

// ErrInvalidURL is returned when a URL cannot be admitted.
var ErrInvalidURL = errors.New("invalid URL")

var urlPattern = regexp.MustCompile(`https?://(?:[-\w.]|(?:%[\da-fA-F]{2}))+[^\s]*`)

// trailingPunct is stripped from the end of URLs found in prose.
const trailingPunct = `.,;:!?'")]}>`

// trackingParams are query parameters that never identify an article.
var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"mc_cid": true,
	"mc_eid": true,
	"ref":    true,
}

// ExtractURLs returns up to max distinct URLs from text, in order of
// appearance. A max of zero or less uses DefaultMaxURLs.
func ExtractURLs(text string, max int) []string {
	if max <= 0 {
		max = DefaultMaxURLs
	}

	var urls []string
	seen := make(map[string]bool)
	for _, m := range urlPattern.FindAllString(text, -1) {
		m = strings.TrimRight(m, trailingPunct)
		if seen[m] {
			continue
		}
		seen[m] = true
		urls = append(urls, m)
		if len(urls) == max {
			break
		}
	}
	return urls
}

// Canonicalize normalises a source URL so equivalent links share one identity.
// Google redirect wrappers are unwrapped, tracking parameters and fragments
// are dropped, and the scheme and host are lowercased.
func Canonicalize(raw string) (string, error) {
	return canonicalize(strings.TrimSpace(raw), true)
}

func canonicalize(raw string, unwrap bool) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	u.Host = strings.ToLower(u.Host)

	if unwrap {
		if target := googleRedirectTarget(u); target != "" {
			return canonicalize(target, false)
		}
	}

	switch {
	case u.Scheme == "http" && u.Port() == "80", u.Scheme == "https" && u.Port() == "443":
		u.Host = u.Hostname()
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	u.RawQuery = stripTracking(u.RawQuery)
	if u.Path == "/" {
		u.Path = ""
		u.RawPath = ""
	}
	return u.String(), nil
}

// googleRedirectTarget returns the wrapped URL of a google.com/url link.
func googleRedirectTarget(u *url.URL) string {
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if !strings.HasPrefix(host, "google.") || u.Path != "/url" {
		return ""
	}
	q := u.Query()
	if target := q.Get("url"); target != "" {
		return target
	}
	return q.Get("q")
}

// stripTracking removes tracking parameters, keeping the rest in order.
func stripTracking(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	var kept []string
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key := pair
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = pair[:i]
		}
		key = strings.ToLower(key)
		if strings.HasPrefix(key, "utm_") || trackingParams[key] {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}
