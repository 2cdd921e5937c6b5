package db

import (
	"context"
	"fmt"
)

// QueueStats counts items at each pipeline stage.
func (db *DB) QueueStats(ctx context.Context) (*QueueStats, error) {
	var s QueueStats
	err := db.pool.QueryRow(ctx,
		`SELECT
		     (SELECT COUNT(*) FROM items),
		     (SELECT COUNT(*) FROM items WHERE status = 'new'),
		     (SELECT COUNT(*) FROM items WHERE status = 'scraped'),
		     (SELECT COUNT(*) FROM items WHERE status = 'failed'),
		     (SELECT COUNT(*) FROM extractions WHERE complete),
		     (SELECT COUNT(*) FROM approvals),
		     (SELECT COUNT(*) FROM rejections),
		     (SELECT COUNT(*) FROM items i
		          JOIN scrape_results s ON s.item_id = i.id AND s.success
		          WHERE i.status = 'scraped'
		            AND NOT EXISTS (SELECT 1 FROM approvals a WHERE a.item_id = i.id)
		            AND NOT EXISTS (SELECT 1 FROM rejections r WHERE r.item_id = i.id))`,
	).Scan(&s.Total, &s.New, &s.Scraped, &s.Failed, &s.WithExtraction, &s.Approved, &s.Rejected, &s.Pending)
	if err != nil {
		return nil, fmt.Errorf("failed to compute queue stats: %w", err)
	}
	return &s, nil
}

// OriginStats counts items and approvals per origin tag, busiest first.
func (db *DB) OriginStats(ctx context.Context) ([]OriginStats, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT i.origin, COUNT(*), COUNT(a.item_id)
		 FROM items i
		 LEFT JOIN approvals a ON a.item_id = i.id
		 GROUP BY i.origin
		 ORDER BY COUNT(*) DESC, i.origin`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute origin stats: %w", err)
	}
	defer rows.Close()

	var out []OriginStats
	for rows.Next() {
		var o OriginStats
		if err := rows.Scan(&o.Origin, &o.Items, &o.Approved); err != nil {
			return nil, fmt.Errorf("failed to scan origin stats: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
