// Package fetch retrieves article pages and reduces them to plain text.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 15 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (compatible; DealTracker/1.0)"

// MaxBodyBytes caps how much of a response body is read.
const MaxBodyBytes = 5 << 20

// FailureKind classifies why a scrape failed. The values are persisted.
type FailureKind string

// Failure kinds
const (
	KindTimeout FailureKind = "timeout"
	KindHTTP    FailureKind = "http_error"
	KindRequest FailureKind = "request_error"
	KindParse   FailureKind = "parse_error"
)

// Result holds the raw content of a single HTTP fetch.
type Result struct {
	URL         string
	HTML        string
	ContentType string
	StatusCode  int
}

// ScrapeError represents a classified failure while fetching or parsing a page.
type ScrapeError struct {
	Kind   FailureKind
	Reason string
	URL    string
	Cause  error
}

func (e *ScrapeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("scrape %s for %s: %s: %v", e.Kind, e.URL, e.Reason, e.Cause)
	}
	return fmt.Sprintf("scrape %s for %s: %s", e.Kind, e.URL, e.Reason)
}

func (e *ScrapeError) Unwrap() error {
	return e.Cause
}

// Options configures the fetch behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	Client    *http.Client
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

func (o *Options) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return &http.Client{Timeout: o.Timeout}
}

// Get retrieves HTML content from a URL. Non-200 responses return the result
// together with a KindHTTP error.
func Get(ctx context.Context, urlStr string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &ScrapeError{Kind: KindRequest, Reason: "invalid URL", URL: urlStr, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &ScrapeError{Kind: KindRequest, Reason: "failed to create request", URL: urlStr, Cause: err}
	}
	req.Header.Set("User-Agent", opts.UserAgent)
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := opts.client().Do(req)
	if err != nil {
		return nil, classifyTransportError(urlStr, err)
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, classifyTransportError(urlStr, err)
	}

	result := &Result{
		URL:         resp.Request.URL.String(),
		HTML:        string(bodyBytes),
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}

	if resp.StatusCode != http.StatusOK {
		return result, &ScrapeError{Kind: KindHTTP, Reason: fmt.Sprintf("HTTP %d", resp.StatusCode), URL: urlStr}
	}
	return result, nil
}

func classifyTransportError(urlStr string, err error) *ScrapeError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &ScrapeError{Kind: KindTimeout, Reason: "request timed out", URL: urlStr, Cause: err}
	}
	return &ScrapeError{Kind: KindRequest, Reason: "request failed", URL: urlStr, Cause: err}
}

// MetaRefreshURL returns the absolute target of a <meta http-equiv="refresh">
// tag, or "" when the page has none. Relative targets resolve against base.
func MetaRefreshURL(html, base string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	var target string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		equiv, _ := s.Attr("http-equiv")
		if !strings.EqualFold(strings.TrimSpace(equiv), "refresh") {
			return true
		}
		content, _ := s.Attr("content")
		target = refreshTarget(content)
		return target == ""
	})
	if target == "" {
		return ""
	}

	ref, err := url.Parse(target)
	if err != nil {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(ref).String()
}

// refreshTarget pulls the url= part out of a refresh content value such as
// `0; URL='https://example.com/a'`.
func refreshTarget(content string) string {
	idx := strings.Index(strings.ToLower(content), "url=")
	if idx < 0 {
		return ""
	}
	target := strings.TrimSpace(content[idx+len("url="):])
	return strings.Trim(target, `'"`)
}

// ExtractMainText parses HTML and returns the main body text.
// It removes noise elements using noiseSelectors, then finds content using contentSelectors.
// If no content selectors match, it falls back to the body element.
func ExtractMainText(html string, contentSelectors []string, noiseSelectors ...string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("nav, footer, header, script, style, noscript, iframe, form, .ad, .advertisement, .ads, .sidebar, .cookie-banner, .popup").Remove()

	if len(noiseSelectors) > 0 {
		noiseSelector := strings.Join(noiseSelectors, ", ")
		if noiseSelector != "" {
			doc.Find(noiseSelector).Remove()
		}
	}

	var mainContent *goquery.Selection
	for _, selector := range contentSelectors {
		if selection := doc.Find(selector); selection.Length() > 0 {
			mainContent = selection.First()
			break
		}
	}
	if mainContent == nil {
		mainContent = doc.Find("body")
	}

	return cleanWhitespace(mainContent.Text()), nil
}

// DefaultTextSelectors returns standard selectors for news article pages.
func DefaultTextSelectors() []string {
	return []string{
		"article",
		"[itemprop='articleBody']",
		".article-body",
		".article-content",
		".entry-content",
		".post-content",
		"main",
		"#content",
	}
}

// cleanWhitespace collapses every run of whitespace to a single space.
func cleanWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
