package enrichment

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/deal-tracker/internal/db"
	"github.com/jonathan/deal-tracker/internal/observability"
	"go.uber.org/zap"
)

// ExtractOptions selects what an extraction batch processes.
type ExtractOptions struct {
	Limit int
	// ItemID restricts the batch to one item.
	ItemID int64
	// Force redoes extractions that are already complete.
	Force bool
	// Delay is the minimum spacing between extractor calls.
	Delay time.Duration
}

// ExtractReport summarises an extraction batch.
type ExtractReport struct {
	Attempted  int `json:"attempted"`
	Complete   int `json:"complete"`
	Incomplete int `json:"incomplete"`
	Skipped    int `json:"skipped"`
	Errors     int `json:"errors"`
}

// Extract runs the extractor over scraped items. Items with a complete
// extraction are skipped unless Force is set. A failed call is stored as an
// incomplete extraction with the error text.
func (s *Service) Extract(ctx context.Context, opts ExtractOptions) (*ExtractReport, error) {
	report := &ExtractReport{}

	jobs, err := s.extractSelection(ctx, opts, report)
	if err != nil {
		return report, err
	}

	p := newPacer(opts.Delay)
	for i := range jobs {
		if s.extractor != nil {
			if err := p.Wait(ctx); err != nil {
				return report, err
			}
		}
		s.extractJob(ctx, &jobs[i], report)
	}

	s.logger.Info("extraction batch complete",
		zap.Int("attempted", report.Attempted),
		zap.Int("complete", report.Complete),
		zap.Int("incomplete", report.Incomplete),
		zap.Int("skipped", report.Skipped))
	return report, nil
}

func (s *Service) extractSelection(ctx context.Context, opts ExtractOptions, report *ExtractReport) ([]db.ExtractionJob, error) {
	if opts.ItemID == 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = DefaultExtractLimit
		}
		return s.store.ListItemsToExtract(ctx, limit, opts.Force)
	}

	item, err := s.store.GetItem(ctx, opts.ItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", opts.ItemID, db.ErrItemNotFound)
	}

	scrape, err := s.store.GetScrapeResult(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get scrape result: %w", err)
	}
	if scrape == nil || !scrape.Success || scrape.Text == nil {
		return nil, fmt.Errorf("item %d: %w", item.ID, ErrNoScrapedText)
	}

	if !opts.Force {
		existing, err := s.store.GetExtraction(ctx, item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get extraction: %w", err)
		}
		if existing != nil && existing.Complete {
			report.Skipped++
			observability.Extractions.WithLabelValues("skipped").Inc()
			return nil, nil
		}
	}
	return []db.ExtractionJob{{Item: *item, Text: *scrape.Text}}, nil
}

func (s *Service) extractJob(ctx context.Context, job *db.ExtractionJob, report *ExtractReport) {
	report.Attempted++
	log := s.logger.With(zap.Int64("item_id", job.Item.ID))

	ext := &db.Extraction{ItemID: job.Item.ID}

	var callErr error
	if s.extractor == nil {
		callErr = ErrExtractionUnavailable
	} else {
		ext.ModelID = s.extractor.ModelID()
		text := truncateRunes(job.Text, s.maxTextChars)
		fields, err := s.extractor.Extract(ctx, text, job.Item.Title, job.Item.URL)
		if err != nil {
			callErr = err
		} else {
			ext.Company = fields.Company
			ext.CompanyDescription = fields.CompanyDescription
			ext.TransactionType = fields.TransactionType
			ext.CapitalSources = fields.CapitalSources
			ext.Sectors = fields.Sectors
			ext.DealAmount = fields.DealAmount
			ext.Investors = fields.Investors
			ext.Location = fields.Location
			ext.StrategicSignificance = fields.StrategicSignificance
			ext.MarketImplications = fields.MarketImplications
			ext.Complete = true
		}
	}

	if callErr != nil {
		msg := callErr.Error()
		ext.Error = &msg
		log.Warn("extraction incomplete", zap.Error(callErr))
	}

	if err := s.store.SaveExtraction(ctx, ext); err != nil {
		report.Errors++
		observability.Extractions.WithLabelValues("error").Inc()
		log.Error("failed to save extraction", zap.Error(err))
		return
	}

	if ext.Complete {
		report.Complete++
		observability.Extractions.WithLabelValues("complete").Inc()
	} else {
		report.Incomplete++
		observability.Extractions.WithLabelValues("incomplete").Inc()
	}
}
