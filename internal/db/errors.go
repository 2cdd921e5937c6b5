package db

import "errors"

var (
	// ErrDuplicateKey is returned by strict inserts when the URL is already known.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrItemNotFound is returned by operations that require an existing item.
	ErrItemNotFound = errors.New("item not found")

	// ErrDecisionConflict is returned when the opposite decision is already recorded.
	ErrDecisionConflict = errors.New("opposite decision already recorded")
)
