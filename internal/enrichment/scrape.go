package enrichment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/deal-tracker/internal/db"
	"github.com/jonathan/deal-tracker/internal/fetch"
	"github.com/jonathan/deal-tracker/internal/observability"
	"go.uber.org/zap"
)

// ScrapeOptions selects what a scrape batch processes.
type ScrapeOptions struct {
	Limit int
	// ItemID restricts the batch to one item.
	ItemID int64
	// Force re-scrapes ItemID even when it already has a result.
	Force bool
	Delay time.Duration
}

// ScrapeReport summarises a scrape batch.
type ScrapeReport struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// Scrape fetches article text for new items. A failed fetch moves the item to
// failed and the batch continues.
func (s *Service) Scrape(ctx context.Context, opts ScrapeOptions) (*ScrapeReport, error) {
	report := &ScrapeReport{}

	items, err := s.scrapeSelection(ctx, opts, report)
	if err != nil {
		return report, err
	}

	p := newPacer(opts.Delay)
	for i := range items {
		if err := p.Wait(ctx); err != nil {
			return report, err
		}
		s.scrapeItem(ctx, &items[i], report)
	}

	s.logger.Info("scrape batch complete",
		zap.Int("attempted", report.Attempted),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped))
	return report, nil
}

func (s *Service) scrapeSelection(ctx context.Context, opts ScrapeOptions, report *ScrapeReport) ([]db.Item, error) {
	if opts.ItemID == 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = DefaultScrapeLimit
		}
		return s.store.ListItemsToScrape(ctx, limit)
	}

	item, err := s.store.GetItem(ctx, opts.ItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", opts.ItemID, db.ErrItemNotFound)
	}
	if !opts.Force {
		existing, err := s.store.GetScrapeResult(ctx, item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get scrape result: %w", err)
		}
		if existing != nil {
			report.Skipped++
			return nil, nil
		}
	}
	return []db.Item{*item}, nil
}

func (s *Service) scrapeItem(ctx context.Context, item *db.Item, report *ScrapeReport) {
	report.Attempted++
	log := s.logger.With(zap.Int64("item_id", item.ID), zap.String("url", item.URL))

	result := &db.ScrapeResult{ItemID: item.ID}
	page, err := s.scraper.Scrape(ctx, item.URL)
	if err != nil {
		kind, reason := classify(err)
		result.FailureKind = &kind
		result.FailureReason = &reason
		log.Warn("scrape failed", zap.String("kind", kind), zap.String("reason", reason))
	} else {
		result.Success = true
		result.Text = &page.Text
		result.HTML = &page.HTML
	}

	if err := s.store.SaveScrapeResult(ctx, result); err != nil {
		report.Errors++
		log.Error("failed to save scrape result", zap.Error(err))
		return
	}

	if result.Success {
		report.Succeeded++
		observability.Scrapes.WithLabelValues("success").Inc()
		log.Debug("scraped", zap.Int("chars", len(page.Text)), zap.Bool("rendered", page.Rendered))
	} else {
		report.Failed++
		observability.Scrapes.WithLabelValues(*result.FailureKind).Inc()
	}
}

// classify maps a scraper error onto a persisted failure kind and reason.
func classify(err error) (string, string) {
	var se *fetch.ScrapeError
	if errors.As(err, &se) {
		reason := se.Reason
		if se.Cause != nil {
			reason = fmt.Sprintf("%s: %v", se.Reason, se.Cause)
		}
		return string(se.Kind), reason
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return string(fetch.KindTimeout), err.Error()
	}
	return string(fetch.KindRequest), err.Error()
}
