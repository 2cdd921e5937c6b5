// Package triage implements the editorial decision state machine: items move
// from pending triage to exactly one of approved or rejected.
package triage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/deal-tracker/internal/actiontoken"
	"github.com/jonathan/deal-tracker/internal/db"
	"github.com/jonathan/deal-tracker/internal/observability"
	"github.com/jonathan/deal-tracker/internal/types"
	"go.uber.org/zap"
)

// DefaultPendingLimit caps ListPending when the caller passes no limit.
const DefaultPendingLimit = 50

// Default actors recorded on decisions.
const (
	DefaultCurator  = "editor"
	LinkActor       = "action-link"
	LinkRejectNote  = "rejected via action link"
	defaultChannel  = ChannelUI
	rejectedListMax = 200
)

// Store is the slice of the item store the engine uses.
type Store interface {
	GetItem(ctx context.Context, id int64) (*db.Item, error)
	GetScrapeResult(ctx context.Context, itemID int64) (*db.ScrapeResult, error)
	GetExtraction(ctx context.Context, itemID int64) (*db.Extraction, error)
	GetApproval(ctx context.Context, itemID int64) (*db.Approval, error)
	GetRejection(ctx context.Context, itemID int64) (*db.Rejection, error)
	Decide(ctx context.Context, d db.Decision) (bool, error)
	DeleteRejection(ctx context.Context, itemID int64) (bool, error)
	ListPending(ctx context.Context, limit int) ([]db.Item, error)
	ListApproved(ctx context.Context, onlyUnpublished bool) ([]db.ApprovedRecord, error)
	ListRejected(ctx context.Context, limit int) ([]db.RejectedRecord, error)
}

// Verifier checks signed action tokens.
type Verifier interface {
	Verify(token string) (*actiontoken.Claims, error)
}

// Result reports whether a decision changed state. Applied is false when the
// same decision was already recorded.
type Result struct {
	ItemID  int64      `json:"item_id"`
	Outcome db.Outcome `json:"outcome"`
	Applied bool       `json:"applied"`
}

// Engine applies triage transitions.
type Engine struct {
	store    Store
	verifier Verifier
	logger   *zap.Logger
}

// NewEngine creates an Engine. verifier may be nil when signed links are not served.
func NewEngine(store Store, verifier Verifier, logger *zap.Logger) *Engine {
	return &Engine{store: store, verifier: verifier, logger: observability.OrNop(logger)}
}

// Accept approves an item. Omitted fields default to the item's latest
// extraction; the summary defaults to its strategic significance.
func (e *Engine) Accept(ctx context.Context, itemID int64, fields types.AcceptRequest) (Result, error) {
	if err := fields.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid accept fields: %w", err)
	}

	ext, err := e.store.GetExtraction(ctx, itemID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load extraction: %w", err)
	}

	approval := buildApproval(itemID, fields, ext)
	return e.Decide(ctx, db.Decision{ItemID: itemID, Outcome: db.OutcomeApproved, Approval: approval})
}

// Reject rejects an item with an optional reason.
func (e *Engine) Reject(ctx context.Context, itemID int64, reason *string, by string) (Result, error) {
	if by == "" {
		by = DefaultCurator
	}
	rejection := &db.Rejection{ItemID: itemID, Reason: reason, RejectedBy: by}
	return e.Decide(ctx, db.Decision{ItemID: itemID, Outcome: db.OutcomeRejected, Rejection: rejection})
}

// Decide records a terminal decision. Repeating a recorded outcome is a no-op;
// requesting the opposite outcome returns *DecisionConflictError.
func (e *Engine) Decide(ctx context.Context, d db.Decision) (Result, error) {
	res := Result{ItemID: d.ItemID, Outcome: d.Outcome}
	channel := string(channelFrom(ctx))
	log := e.logger.With(zap.Int64("item_id", d.ItemID), zap.String("outcome", string(d.Outcome)), zap.String("channel", channel))

	applied, err := e.store.Decide(ctx, d)
	switch {
	case err == nil:
		res.Applied = applied
		result := "noop"
		if applied {
			result = "applied"
			log.Info("decision recorded")
		} else {
			log.Debug("decision already recorded")
		}
		observability.Decisions.WithLabelValues(string(d.Outcome), channel, result).Inc()
		return res, nil
	case errors.Is(err, db.ErrDecisionConflict):
		observability.Decisions.WithLabelValues(string(d.Outcome), channel, "conflict").Inc()
		log.Warn("decision conflicts with existing outcome")
		return res, &DecisionConflictError{ItemID: d.ItemID, Requested: d.Outcome, Existing: d.Outcome.Opposite()}
	case errors.Is(err, db.ErrItemNotFound):
		observability.Decisions.WithLabelValues(string(d.Outcome), channel, "not_found").Inc()
		return res, &ItemNotFoundError{ItemID: d.ItemID}
	default:
		observability.Decisions.WithLabelValues(string(d.Outcome), channel, "error").Inc()
		return res, fmt.Errorf("failed to record decision: %w", err)
	}
}

// UndoReject removes an item's rejection and reports whether one existed.
// Approvals cannot be undone.
func (e *Engine) UndoReject(ctx context.Context, itemID int64) (bool, error) {
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return false, fmt.Errorf("failed to get item: %w", err)
	}
	if item == nil {
		return false, &ItemNotFoundError{ItemID: itemID}
	}

	removed, err := e.store.DeleteRejection(ctx, itemID)
	if err != nil {
		return false, err
	}
	if removed {
		e.logger.Info("rejection undone", zap.Int64("item_id", itemID))
	}
	return removed, nil
}

// ListPending returns items awaiting a decision, newest publication first.
func (e *Engine) ListPending(ctx context.Context, limit int) ([]db.Item, error) {
	if limit <= 0 {
		limit = DefaultPendingLimit
	}
	return e.store.ListPending(ctx, limit)
}

// ListApproved returns the master list of approvals.
func (e *Engine) ListApproved(ctx context.Context) ([]db.ApprovedRecord, error) {
	return e.store.ListApproved(ctx, false)
}

// ListRejected returns recent rejections.
func (e *Engine) ListRejected(ctx context.Context, limit int) ([]db.RejectedRecord, error) {
	if limit <= 0 || limit > rejectedListMax {
		limit = rejectedListMax
	}
	return e.store.ListRejected(ctx, limit)
}

func buildApproval(itemID int64, f types.AcceptRequest, ext *db.Extraction) *db.Approval {
	a := &db.Approval{
		ItemID:    itemID,
		Company:   f.Company,
		Investors: f.Investors,
		Amount:    f.Amount,
		Location:  f.Location,
		Summary:   f.Summary,
		Notes:     f.Notes,
		CuratedBy: f.CuratedBy,
	}
	if f.TransactionType != nil {
		if tt, ok := types.ParseTransactionType(string(*f.TransactionType)); ok {
			a.TransactionType = &tt
		}
	}
	if f.CapitalSources != nil {
		a.CapitalSources, _ = f.CapitalSources.Normalize()
	}
	if f.Sectors != nil {
		a.Sectors, _ = f.Sectors.Normalize()
	}
	if a.CuratedBy == "" {
		a.CuratedBy = DefaultCurator
	}

	if ext == nil {
		return a
	}
	if a.Company == nil {
		a.Company = ext.Company
	}
	if a.Investors == nil {
		a.Investors = ext.Investors
	}
	if a.Amount == nil {
		a.Amount = ext.DealAmount
	}
	if a.TransactionType == nil {
		a.TransactionType = ext.TransactionType
	}
	if f.CapitalSources == nil {
		a.CapitalSources = ext.CapitalSources
	}
	if f.Sectors == nil {
		a.Sectors = ext.Sectors
	}
	if a.Location == nil {
		a.Location = ext.Location
	}
	if a.Summary == nil {
		a.Summary = ext.StrategicSignificance
	}
	return a
}
