package fetch

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Page is a successfully scraped article.
type Page struct {
	URL      string // the URL that was requested
	FinalURL string // after HTTP redirects and at most one meta refresh
	HTML     string
	Text     string
	Rendered bool // text came from the headless browser
}

// RenderFunc renders a URL to HTML, typically with a headless browser.
type RenderFunc func(ctx context.Context, url string) (string, error)

// Scraper fetches article pages and extracts their text.
type Scraper struct {
	opts   *Options
	render RenderFunc
	logger *zap.Logger
}

// ScraperOption customises a Scraper.
type ScraperOption func(*Scraper)

// WithBrowserFallback re-renders pages whose text is too short with a
// headless browser.
func WithBrowserFallback(timeout time.Duration) ScraperOption {
	return func(s *Scraper) {
		if timeout <= 0 {
			timeout = DefaultBrowserTimeout
		}
		s.render = func(ctx context.Context, url string) (string, error) {
			return RenderWithBrowser(ctx, url, timeout, s.logger)
		}
	}
}

// WithRenderer installs a custom renderer for short pages.
func WithRenderer(fn RenderFunc) ScraperOption {
	return func(s *Scraper) { s.render = fn }
}

// NewScraper creates a scraper. A nil opts uses DefaultOptions.
func NewScraper(opts *Options, logger *zap.Logger, options ...ScraperOption) *Scraper {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scraper{opts: opts, logger: logger}
	for _, o := range options {
		o(s)
	}
	return s
}

// Scrape fetches url, follows a single meta refresh hop, and extracts the
// article text. Failures are returned as *ScrapeError.
func (s *Scraper) Scrape(ctx context.Context, url string) (*Page, error) {
	res, err := Get(ctx, url, s.opts)
	if err != nil {
		return nil, err
	}

	if target := MetaRefreshURL(res.HTML, res.URL); target != "" && target != res.URL {
		s.logger.Debug("following meta refresh", zap.String("url", url), zap.String("target", target))
		res, err = Get(ctx, target, s.opts)
		if err != nil {
			if se, ok := err.(*ScrapeError); ok {
				se.Reason += " (redirected)"
			}
			return nil, err
		}
	}

	text, err := ExtractArticleText(res.HTML, res.URL)
	if err != nil {
		return nil, &ScrapeError{Kind: KindParse, Reason: "failed to parse HTML", URL: url, Cause: err}
	}

	page := &Page{URL: url, FinalURL: res.URL, HTML: res.HTML, Text: text}

	if s.render != nil && ShouldUseBrowser(text) {
		html, err := s.render(ctx, res.URL)
		if err != nil {
			s.logger.Warn("browser fallback failed", zap.String("url", res.URL), zap.Error(err))
		} else if rendered, err := ExtractArticleText(html, res.URL); err == nil && len(rendered) > len(text) {
			page.HTML, page.Text, page.Rendered = html, rendered, true
		}
	}

	if page.Text == "" {
		return nil, &ScrapeError{Kind: KindParse, Reason: "no article text found", URL: url}
	}
	return page, nil
}
