// Package enrichment runs the scrape and AI extraction stages over stored items.
package enrichment

import (
	"context"
	"errors"
	"time"

	"github.com/jonathan/deal-tracker/internal/db"
	"github.com/jonathan/deal-tracker/internal/fetch"
	"github.com/jonathan/deal-tracker/internal/observability"
	"github.com/jonathan/deal-tracker/internal/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Defaults for batch runs.
const (
	DefaultScrapeLimit  = 100
	DefaultExtractLimit = 5
	DefaultMaxTextChars = 8000
	DefaultDelay        = time.Second
)

// ErrExtractionUnavailable is recorded when no extractor is configured.
var ErrExtractionUnavailable = errors.New("extraction unavailable: no extractor configured")

// ErrNoScrapedText is returned when extraction is requested for an item
// without a successful scrape.
var ErrNoScrapedText = errors.New("item has no scraped text")

// Scraper fetches an article and reduces it to text.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*fetch.Page, error)
}

// Extractor produces structured deal fields from article text.
type Extractor interface {
	Extract(ctx context.Context, text, title, url string) (*types.ExtractionFields, error)
	ModelID() string
}

// Store is the slice of the item store the stages need.
type Store interface {
	GetItem(ctx context.Context, id int64) (*db.Item, error)
	ListItemsToScrape(ctx context.Context, limit int) ([]db.Item, error)
	SaveScrapeResult(ctx context.Context, r *db.ScrapeResult) error
	GetScrapeResult(ctx context.Context, itemID int64) (*db.ScrapeResult, error)
	ListItemsToExtract(ctx context.Context, limit int, force bool) ([]db.ExtractionJob, error)
	GetExtraction(ctx context.Context, itemID int64) (*db.Extraction, error)
	SaveExtraction(ctx context.Context, e *db.Extraction) error
}

// Service runs enrichment batches.
type Service struct {
	store        Store
	scraper      Scraper
	extractor    Extractor
	maxTextChars int
	logger       *zap.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithMaxTextChars sets how much article text is sent to the extractor.
func WithMaxTextChars(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTextChars = n
		}
	}
}

// NewService creates a Service. A nil extractor makes every extraction
// record incomplete with ErrExtractionUnavailable.
func NewService(store Store, scraper Scraper, extractor Extractor, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:        store,
		scraper:      scraper,
		extractor:    extractor,
		maxTextChars: DefaultMaxTextChars,
		logger:       observability.OrNop(logger),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// pacer spaces out calls to an external service. The first Wait returns
// immediately.
type pacer struct {
	limiter *rate.Limiter
}

func newPacer(delay time.Duration) *pacer {
	if delay <= 0 {
		return &pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &pacer{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

func (p *pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
