package triage

import (
	"context"
	"fmt"

	"github.com/jonathan/deal-tracker/internal/db"
)

// State is the derived lifecycle position of an item.
type State string

// Lifecycle states. Only new, scraped and failed are stored; the rest are derived.
const (
	StateNew           State = "new"
	StateFailed        State = "failed"
	StatePendingTriage State = "pending_triage"
	StateApproved      State = "approved"
	StateRejected      State = "rejected"
)

// ItemDetail is everything known about one item.
type ItemDetail struct {
	Item       db.Item          `json:"item"`
	Scrape     *db.ScrapeResult `json:"scrape,omitempty"`
	Extraction *db.Extraction   `json:"extraction,omitempty"`
	Approval   *db.Approval     `json:"approval,omitempty"`
	Rejection  *db.Rejection    `json:"rejection,omitempty"`
	State      State            `json:"state"`
}

// Detail loads an item with its enrichment and decision records.
func (e *Engine) Detail(ctx context.Context, itemID int64) (*ItemDetail, error) {
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if item == nil {
		return nil, &ItemNotFoundError{ItemID: itemID}
	}

	d := &ItemDetail{Item: *item}
	if d.Scrape, err = e.store.GetScrapeResult(ctx, itemID); err != nil {
		return nil, err
	}
	if d.Extraction, err = e.store.GetExtraction(ctx, itemID); err != nil {
		return nil, err
	}
	if d.Approval, err = e.store.GetApproval(ctx, itemID); err != nil {
		return nil, err
	}
	if d.Rejection, err = e.store.GetRejection(ctx, itemID); err != nil {
		return nil, err
	}
	d.State = deriveState(d)
	return d, nil
}

func deriveState(d *ItemDetail) State {
	switch {
	case d.Approval != nil:
		return StateApproved
	case d.Rejection != nil:
		return StateRejected
	case d.Item.Status == db.StatusFailed:
		return StateFailed
	case d.Item.Status == db.StatusScraped && d.Scrape != nil && d.Scrape.Success:
		return StatePendingTriage
	default:
		return StateNew
	}
}
