package triage

import (
	"fmt"

	"github.com/jonathan/deal-tracker/internal/db"
)

// ItemNotFoundError is returned when a decision or lookup names an unknown item.
type ItemNotFoundError struct {
	ItemID int64
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %d not found", e.ItemID)
}

func (e *ItemNotFoundError) Unwrap() error { return db.ErrItemNotFound }

// DecisionConflictError is returned when the opposite decision already exists.
type DecisionConflictError struct {
	ItemID    int64
	Requested db.Outcome
	Existing  db.Outcome
}

func (e *DecisionConflictError) Error() string {
	return fmt.Sprintf("item %d is already %s; cannot mark it %s", e.ItemID, e.Existing, e.Requested)
}

func (e *DecisionConflictError) Unwrap() error { return db.ErrDecisionConflict }
