package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// -----------------------------------------------------------------------------
// Decision Methods
// -----------------------------------------------------------------------------

// Decide records a terminal decision for an item in one transaction. The item
// row is locked so concurrent deciders serialize. Recording the same outcome
// twice is a no-op (applied=false); recording the opposite outcome returns
// ErrDecisionConflict.
func (db *DB) Decide(ctx context.Context, d Decision) (bool, error) {
	if err := d.validate(); err != nil {
		return false, err
	}

	var applied bool
	err := db.withTx(ctx, func(tx pgx.Tx) error {
		var id int64
		if err := tx.QueryRow(ctx, `SELECT id FROM items WHERE id = $1 FOR UPDATE`, d.ItemID).Scan(&id); err != nil {
			if err == pgx.ErrNoRows {
				return ErrItemNotFound
			}
			return fmt.Errorf("failed to lock item: %w", err)
		}

		var approved, rejected bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM approvals WHERE item_id = $1),
			        EXISTS (SELECT 1 FROM rejections WHERE item_id = $1)`,
			d.ItemID,
		).Scan(&approved, &rejected); err != nil {
			return fmt.Errorf("failed to read decision state: %w", err)
		}

		switch d.Outcome {
		case OutcomeApproved:
			if approved {
				return nil
			}
			if rejected {
				return ErrDecisionConflict
			}
			n, err := insertApproval(ctx, tx, d.Approval)
			if err != nil {
				return err
			}
			applied = n > 0
		case OutcomeRejected:
			if rejected {
				return nil
			}
			if approved {
				return ErrDecisionConflict
			}
			n, err := insertRejection(ctx, tx, d.Rejection)
			if err != nil {
				return err
			}
			applied = n > 0
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			// A concurrent writer recorded the same decision first.
			return false, nil
		}
		return false, err
	}
	return applied, nil
}

func (d Decision) validate() error {
	switch d.Outcome {
	case OutcomeApproved:
		if d.Approval == nil {
			return errors.New("approved decision requires an approval record")
		}
		d.Approval.ItemID = d.ItemID
	case OutcomeRejected:
		if d.Rejection == nil {
			return errors.New("rejected decision requires a rejection record")
		}
		d.Rejection.ItemID = d.ItemID
	default:
		return fmt.Errorf("unknown decision outcome %q", d.Outcome)
	}
	return nil
}

func insertApproval(ctx context.Context, tx pgx.Tx, a *Approval) (int64, error) {
	err := tx.QueryRow(ctx,
		`INSERT INTO approvals (item_id, company, investors, amount, transaction_type, capital_sources,
		                        sectors, location, summary, notes, curated_by, curated_at, published)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), FALSE)
		 ON CONFLICT (item_id) DO NOTHING
		 RETURNING curated_at`,
		a.ItemID, a.Company, a.Investors, a.Amount, transactionTypeValue(a.TransactionType),
		nullIfEmpty(a.CapitalSources.String()), nullIfEmpty(a.Sectors.String()),
		a.Location, a.Summary, a.Notes, a.CuratedBy,
	).Scan(&a.CuratedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to insert approval: %w", err)
	}
	a.Published = false
	a.PublishedAt = nil
	return 1, nil
}

func insertRejection(ctx context.Context, tx pgx.Tx, r *Rejection) (int64, error) {
	err := tx.QueryRow(ctx,
		`INSERT INTO rejections (item_id, reason, rejected_by, rejected_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (item_id) DO NOTHING
		 RETURNING rejected_at`,
		r.ItemID, r.Reason, r.RejectedBy,
	).Scan(&r.RejectedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to insert rejection: %w", err)
	}
	return 1, nil
}

// DeleteRejection removes an item's rejection, reporting whether one existed.
func (db *DB) DeleteRejection(ctx context.Context, itemID int64) (bool, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM rejections WHERE item_id = $1`, itemID)
	if err != nil {
		return false, fmt.Errorf("failed to delete rejection: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

const approvalColumns = `a.item_id, a.company, a.investors, a.amount, a.transaction_type, a.capital_sources,
	a.sectors, a.location, a.summary, a.notes, a.curated_by, a.curated_at, a.published, a.published_at`

// approvalScanner collects nullable category columns before converting them.
type approvalScanner struct {
	a                           Approval
	txType, capital, sectorList *string
}

func (s *approvalScanner) dest() []any {
	a := &s.a
	return []any{&a.ItemID, &a.Company, &a.Investors, &a.Amount, &s.txType, &s.capital,
		&s.sectorList, &a.Location, &a.Summary, &a.Notes, &a.CuratedBy, &a.CuratedAt, &a.Published, &a.PublishedAt}
}

func (s *approvalScanner) approval() Approval {
	s.a.TransactionType = parseTransactionType(s.txType)
	s.a.CapitalSources = parseCapitalSources(s.capital)
	s.a.Sectors = parseSectors(s.sectorList)
	return s.a
}

// GetApproval retrieves the approval for an item
func (db *DB) GetApproval(ctx context.Context, itemID int64) (*Approval, error) {
	var s approvalScanner
	err := db.pool.QueryRow(ctx,
		`SELECT `+approvalColumns+` FROM approvals a WHERE a.item_id = $1`,
		itemID,
	).Scan(s.dest()...)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}
	a := s.approval()
	return &a, nil
}

// GetRejection retrieves the rejection for an item
func (db *DB) GetRejection(ctx context.Context, itemID int64) (*Rejection, error) {
	var r Rejection
	err := db.pool.QueryRow(ctx,
		`SELECT item_id, reason, rejected_by, rejected_at FROM rejections WHERE item_id = $1`,
		itemID,
	).Scan(&r.ItemID, &r.Reason, &r.RejectedBy, &r.RejectedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get rejection: %w", err)
	}
	return &r, nil
}

// ListApproved returns every approval joined to its item, newest deal first.
func (db *DB) ListApproved(ctx context.Context, onlyUnpublished bool) ([]ApprovedRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT i.id, i.url, i.title, i.summary, i.published_at, i.origin, i.discovered_at, i.status, `+approvalColumns+`
		 FROM approvals a
		 JOIN items i ON i.id = a.item_id
		 WHERE NOT $1 OR NOT a.published
		 ORDER BY COALESCE(i.published_at, a.curated_at) DESC, i.id DESC`,
		onlyUnpublished,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved items: %w", err)
	}
	defer rows.Close()

	var records []ApprovedRecord
	for rows.Next() {
		var rec ApprovedRecord
		var s approvalScanner
		it := &rec.Item
		dest := append([]any{&it.ID, &it.URL, &it.Title, &it.Summary, &it.PublishedAt, &it.Origin,
			&it.DiscoveredAt, &it.Status}, s.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan approved item: %w", err)
		}
		rec.Approval = s.approval()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate approved items: %w", err)
	}
	return records, nil
}

// ListRejected returns the most recent rejections joined to their items.
func (db *DB) ListRejected(ctx context.Context, limit int) ([]RejectedRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT i.id, i.url, i.title, i.summary, i.published_at, i.origin, i.discovered_at, i.status,
		        r.item_id, r.reason, r.rejected_by, r.rejected_at
		 FROM rejections r
		 JOIN items i ON i.id = r.item_id
		 ORDER BY r.rejected_at DESC, i.id DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list rejected items: %w", err)
	}
	defer rows.Close()

	var records []RejectedRecord
	for rows.Next() {
		var rec RejectedRecord
		it, r := &rec.Item, &rec.Rejection
		if err := rows.Scan(&it.ID, &it.URL, &it.Title, &it.Summary, &it.PublishedAt, &it.Origin,
			&it.DiscoveredAt, &it.Status, &r.ItemID, &r.Reason, &r.RejectedBy, &r.RejectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rejected item: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rejected items: %w", err)
	}
	return records, nil
}

// MarkPublished flags approvals as published. Already-published rows keep their original timestamp.
func (db *DB) MarkPublished(ctx context.Context, itemIDs []int64, at time.Time) error {
	if len(itemIDs) == 0 {
		return nil
	}
	_, err := db.pool.Exec(ctx,
		`UPDATE approvals SET published = TRUE, published_at = $2
		 WHERE item_id = ANY($1) AND NOT published`,
		itemIDs, at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark published: %w", err)
	}
	return nil
}
