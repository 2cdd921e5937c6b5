package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jonathan/deal-tracker/internal/types"
)

// -----------------------------------------------------------------------------
// Scrape Result Methods
// -----------------------------------------------------------------------------

// SaveScrapeResult replaces the item's scrape result and moves the item to
// scraped or failed in the same transaction.
func (db *DB) SaveScrapeResult(ctx context.Context, r *ScrapeResult) error {
	status := StatusScraped
	if !r.Success {
		status = StatusFailed
	}

	return db.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE items SET status = $2 WHERE id = $1`, r.ItemID, status)
		if err != nil {
			return fmt.Errorf("failed to update item status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrItemNotFound
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO scrape_results (item_id, success, text, html, failure_kind, failure_reason, scraped_at)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW())
			 ON CONFLICT (item_id) DO UPDATE SET
			     success = $2, text = $3, html = $4, failure_kind = $5, failure_reason = $6, scraped_at = NOW()
			 RETURNING scraped_at`,
			r.ItemID, r.Success, r.Text, r.HTML, r.FailureKind, r.FailureReason,
		).Scan(&r.ScrapedAt)
		if err != nil {
			return fmt.Errorf("failed to save scrape result: %w", err)
		}
		return nil
	})
}

// GetScrapeResult retrieves the scrape result for an item
func (db *DB) GetScrapeResult(ctx context.Context, itemID int64) (*ScrapeResult, error) {
	var r ScrapeResult
	err := db.pool.QueryRow(ctx,
		`SELECT item_id, success, text, html, failure_kind, failure_reason, scraped_at
		 FROM scrape_results WHERE item_id = $1`,
		itemID,
	).Scan(&r.ItemID, &r.Success, &r.Text, &r.HTML, &r.FailureKind, &r.FailureReason, &r.ScrapedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get scrape result: %w", err)
	}
	return &r, nil
}

// -----------------------------------------------------------------------------
// Extraction Methods
// -----------------------------------------------------------------------------

// ListItemsToExtract returns successfully scraped items with their text. Unless
// force is set, items whose extraction is already complete are excluded.
func (db *DB) ListItemsToExtract(ctx context.Context, limit int, force bool) ([]ExtractionJob, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT i.id, i.url, i.title, i.summary, i.published_at, i.origin, i.discovered_at, i.status, s.text
		 FROM items i
		 JOIN scrape_results s ON s.item_id = i.id AND s.success AND s.text IS NOT NULL
		 LEFT JOIN extractions e ON e.item_id = i.id
		 WHERE $2 OR e.item_id IS NULL OR NOT e.complete
		 ORDER BY i.id
		 LIMIT $1`,
		limit, force,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list items to extract: %w", err)
	}
	defer rows.Close()

	var jobs []ExtractionJob
	for rows.Next() {
		var j ExtractionJob
		it := &j.Item
		if err := rows.Scan(&it.ID, &it.URL, &it.Title, &it.Summary, &it.PublishedAt, &it.Origin,
			&it.DiscoveredAt, &it.Status, &j.Text); err != nil {
			return nil, fmt.Errorf("failed to scan extraction job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate extraction jobs: %w", err)
	}
	return jobs, nil
}

// GetExtraction retrieves the extraction for an item
func (db *DB) GetExtraction(ctx context.Context, itemID int64) (*Extraction, error) {
	var e Extraction
	var txType, capital, sectorList *string
	err := db.pool.QueryRow(ctx,
		`SELECT item_id, company, company_description, transaction_type, capital_sources, sectors,
		        deal_amount, investors, location, strategic_significance, market_implications,
		        complete, model_id, error, extracted_at
		 FROM extractions WHERE item_id = $1`,
		itemID,
	).Scan(&e.ItemID, &e.Company, &e.CompanyDescription, &txType, &capital, &sectorList,
		&e.DealAmount, &e.Investors, &e.Location, &e.StrategicSignificance, &e.MarketImplications,
		&e.Complete, &e.ModelID, &e.Error, &e.ExtractedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get extraction: %w", err)
	}

	e.TransactionType = parseTransactionType(txType)
	e.CapitalSources = parseCapitalSources(capital)
	e.Sectors = parseSectors(sectorList)
	return &e, nil
}

// SaveExtraction creates or overwrites the extraction for an item.
func (db *DB) SaveExtraction(ctx context.Context, e *Extraction) error {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO extractions (item_id, company, company_description, transaction_type, capital_sources,
		                          sectors, deal_amount, investors, location, strategic_significance,
		                          market_implications, complete, model_id, error, extracted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		 ON CONFLICT (item_id) DO UPDATE SET
		     company = $2,
		     company_description = $3,
		     transaction_type = $4,
		     capital_sources = $5,
		     sectors = $6,
		     deal_amount = $7,
		     investors = $8,
		     location = $9,
		     strategic_significance = $10,
		     market_implications = $11,
		     complete = $12,
		     model_id = $13,
		     error = $14,
		     extracted_at = NOW()
		 RETURNING extracted_at`,
		e.ItemID, e.Company, e.CompanyDescription, transactionTypeValue(e.TransactionType),
		nullIfEmpty(e.CapitalSources.String()), nullIfEmpty(e.Sectors.String()),
		e.DealAmount, e.Investors, e.Location, e.StrategicSignificance,
		e.MarketImplications, e.Complete, e.ModelID, e.Error,
	).Scan(&e.ExtractedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrItemNotFound
		}
		return fmt.Errorf("failed to save extraction: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Category column helpers
// -----------------------------------------------------------------------------

func transactionTypeValue(t *types.TransactionType) *string {
	if t == nil || *t == "" {
		return nil
	}
	s := string(*t)
	return &s
}

func parseTransactionType(s *string) *types.TransactionType {
	if s == nil {
		return nil
	}
	t, ok := types.ParseTransactionType(*s)
	if !ok {
		return nil
	}
	return &t
}

func parseCapitalSources(s *string) types.CapitalSources {
	if s == nil {
		return nil
	}
	set, _ := types.ParseCapitalSources(*s)
	return set
}

func parseSectors(s *string) types.Sectors {
	if s == nil {
		return nil
	}
	set, _ := types.ParseSectors(*s)
	return set
}
