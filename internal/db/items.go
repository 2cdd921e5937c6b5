package db

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// -----------------------------------------------------------------------------
// Item Methods
// -----------------------------------------------------------------------------

var itemColumns = []string{"id", "url", "title", "summary", "published_at", "origin", "discovered_at", "status"}

const itemSelect = `SELECT i.id, i.url, i.title, i.summary, i.published_at, i.origin, i.discovered_at, i.status FROM items i`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.URL, &it.Title, &it.Summary, &it.PublishedAt, &it.Origin, &it.DiscoveredAt, &it.Status)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func collectItems(rows pgx.Rows) ([]Item, error) {
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}

// InsertItem strictly inserts a new item, returning ErrDuplicateKey if the URL is known.
func (db *DB) InsertItem(ctx context.Context, c *Candidate) (*Item, error) {
	it, err := scanItem(db.pool.QueryRow(ctx,
		`INSERT INTO items (url, title, summary, published_at, origin, status)
		 VALUES ($1, $2, $3, $4, $5, 'new')
		 RETURNING id, url, title, summary, published_at, origin, discovered_at, status`,
		c.URL, c.Title, c.Summary, c.PublishedAt, c.Origin,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("item %s: %w", c.URL, ErrDuplicateKey)
		}
		return nil, fmt.Errorf("failed to insert item: %w", err)
	}
	return it, nil
}

// InsertItemIfAbsent inserts the item unless its URL exists. It returns the
// identity of whichever row holds the URL afterwards.
func (db *DB) InsertItemIfAbsent(ctx context.Context, c *Candidate) (int64, bool, error) {
	var id int64
	err := db.pool.QueryRow(ctx,
		`INSERT INTO items (url, title, summary, published_at, origin, status)
		 VALUES ($1, $2, $3, $4, $5, 'new')
		 ON CONFLICT (url) DO NOTHING
		 RETURNING id`,
		c.URL, c.Title, c.Summary, c.PublishedAt, c.Origin,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if err != pgx.ErrNoRows {
		return 0, false, fmt.Errorf("failed to insert item: %w", err)
	}

	// Conflict: the row already exists.
	err = db.pool.QueryRow(ctx, `SELECT id FROM items WHERE url = $1`, c.URL).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up existing item: %w", err)
	}
	return id, false, nil
}

// GetItem retrieves an item by ID
func (db *DB) GetItem(ctx context.Context, id int64) (*Item, error) {
	it, err := scanItem(db.pool.QueryRow(ctx, itemSelect+` WHERE i.id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return it, nil
}

// GetItemByURL retrieves an item by its canonical URL
func (db *DB) GetItemByURL(ctx context.Context, url string) (*Item, error) {
	it, err := scanItem(db.pool.QueryRow(ctx, itemSelect+` WHERE i.url = $1`, url))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get item by url: %w", err)
	}
	return it, nil
}

// ListItems lists items newest-discovered first with optional filters.
func (db *DB) ListItems(ctx context.Context, filter ItemFilter) ([]Item, error) {
	q := psql.Select(itemColumns...).From("items").OrderBy("discovered_at DESC", "id DESC")
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Origin != "" {
		q = q.Where(sq.Eq{"origin": filter.Origin})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build item query: %w", err)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return collectItems(rows)
}

// ListPending returns items awaiting triage: scraped successfully with no decision.
func (db *DB) ListPending(ctx context.Context, limit int) ([]Item, error) {
	rows, err := db.pool.Query(ctx,
		itemSelect+`
		 JOIN scrape_results s ON s.item_id = i.id AND s.success
		 WHERE i.status = 'scraped'
		   AND NOT EXISTS (SELECT 1 FROM approvals a WHERE a.item_id = i.id)
		   AND NOT EXISTS (SELECT 1 FROM rejections r WHERE r.item_id = i.id)
		 ORDER BY i.published_at DESC NULLS LAST, i.id DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending items: %w", err)
	}
	return collectItems(rows)
}

// ListItemsToScrape returns new items that have no scrape result yet, oldest first.
func (db *DB) ListItemsToScrape(ctx context.Context, limit int) ([]Item, error) {
	rows, err := db.pool.Query(ctx,
		itemSelect+`
		 WHERE i.status = 'new'
		   AND NOT EXISTS (SELECT 1 FROM scrape_results s WHERE s.item_id = i.id)
		 ORDER BY i.discovered_at, i.id
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list items to scrape: %w", err)
	}
	return collectItems(rows)
}

// ListDigestCandidates returns pending items whose extraction is complete.
func (db *DB) ListDigestCandidates(ctx context.Context, limit int) ([]Item, error) {
	rows, err := db.pool.Query(ctx,
		itemSelect+`
		 JOIN scrape_results s ON s.item_id = i.id AND s.success
		 JOIN extractions e ON e.item_id = i.id AND e.complete
		 WHERE i.status = 'scraped'
		   AND NOT EXISTS (SELECT 1 FROM approvals a WHERE a.item_id = i.id)
		   AND NOT EXISTS (SELECT 1 FROM rejections r WHERE r.item_id = i.id)
		 ORDER BY i.published_at DESC NULLS LAST, i.id DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list digest candidates: %w", err)
	}
	return collectItems(rows)
}
