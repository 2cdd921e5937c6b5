package db

import (
	"time"

	"github.com/jonathan/deal-tracker/internal/types"
)

// Outcome is a terminal triage decision.
type Outcome string

// Decision outcomes
const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

// Opposite returns the outcome that conflicts with o.
func (o Outcome) Opposite() Outcome {
	if o == OutcomeApproved {
		return OutcomeRejected
	}
	return OutcomeApproved
}

// Approval is the curated record for an approved item.
type Approval struct {
	ItemID          int64                  `json:"item_id"`
	Company         *string                `json:"company"`
	Investors       *string                `json:"investors"`
	Amount          *string                `json:"amount"`
	TransactionType *types.TransactionType `json:"transaction_type"`
	CapitalSources  types.CapitalSources   `json:"capital_sources"`
	Sectors         types.Sectors          `json:"sectors"`
	Location        *string                `json:"location"`
	Summary         *string                `json:"summary"`
	Notes           *string                `json:"notes,omitempty"`
	CuratedBy       string                 `json:"curated_by"`
	CuratedAt       time.Time              `json:"curated_at"`
	Published       bool                   `json:"published"`
	PublishedAt     *time.Time             `json:"published_at,omitempty"`
}

// Rejection records why an item was rejected.
type Rejection struct {
	ItemID     int64     `json:"item_id"`
	Reason     *string   `json:"reason,omitempty"`
	RejectedBy string    `json:"rejected_by"`
	RejectedAt time.Time `json:"rejected_at"`
}

// Decision is the input to Store.Decide. Exactly one of Approval or Rejection
// must be set, matching Outcome.
type Decision struct {
	ItemID    int64
	Outcome   Outcome
	Approval  *Approval
	Rejection *Rejection
}

// ApprovedRecord joins an approval to its item.
type ApprovedRecord struct {
	Item     Item     `json:"item"`
	Approval Approval `json:"approval"`
}

// RejectedRecord joins a rejection to its item.
type RejectedRecord struct {
	Item      Item      `json:"item"`
	Rejection Rejection `json:"rejection"`
}

// QueueStats summarises the pipeline queue.
type QueueStats struct {
	Total          int `json:"total"`
	New            int `json:"new"`
	Scraped        int `json:"scraped"`
	Failed         int `json:"failed"`
	WithExtraction int `json:"with_extraction"`
	Approved       int `json:"approved"`
	Rejected       int `json:"rejected"`
	Pending        int `json:"pending_triage"`
}

// OriginStats counts items and approvals per origin tag.
type OriginStats struct {
	Origin   string `json:"origin"`
	Items    int    `json:"items"`
	Approved int    `json:"approved"`
}
