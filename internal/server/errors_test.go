package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/jonathan/deal-tracker/internal/actiontoken"
	"github.com/jonathan/deal-tracker/internal/db"
	"github.com/jonathan/deal-tracker/internal/ingestion"
	"github.com/jonathan/deal-tracker/internal/scheduler"
	"github.com/jonathan/deal-tracker/internal/triage"
	"github.com/jonathan/deal-tracker/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "invalid username or password", (&ErrInvalidCredentials{}).Error())
	assert.Equal(t, "validation error: url - required", (&ErrValidation{Field: "url", Message: "required"}).Error())
	assert.Equal(t, "scheduler is not configured", (&ErrFeatureDisabled{Feature: "scheduler"}).Error())
}

func TestHTTPStatus(t *testing.T) {
	bad := types.TransactionType("Bogus")
	fieldErr := (&types.AcceptRequest{TransactionType: &bad}).Validate()

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", &ErrValidation{Field: "url", Message: "required"}, http.StatusBadRequest},
		{"validator field errors", fmt.Errorf("invalid accept fields: %w", fieldErr), http.StatusBadRequest},
		{"invalid url", fmt.Errorf("%w: missing host", ingestion.ErrInvalidURL), http.StatusBadRequest},
		{"credentials", &ErrInvalidCredentials{}, http.StatusUnauthorized},
		{"item not found", &triage.ItemNotFoundError{ItemID: 7}, http.StatusNotFound},
		{"decision conflict", &triage.DecisionConflictError{ItemID: 7, Requested: db.OutcomeApproved, Existing: db.OutcomeRejected}, http.StatusConflict},
		{"duplicate", fmt.Errorf("item x: %w", db.ErrDuplicateKey), http.StatusConflict},
		{"cycle running", scheduler.ErrCycleRunning, http.StatusConflict},
		{"expired token", &actiontoken.ExpiredError{}, http.StatusGone},
		{"bad signature", actiontoken.ErrInvalidSignature, http.StatusBadRequest},
		{"bad format", actiontoken.ErrInvalidFormat, http.StatusBadRequest},
		{"feature disabled", &ErrFeatureDisabled{Feature: "login"}, http.StatusServiceUnavailable},
		{"actions disabled", triage.ErrActionsDisabled, http.StatusServiceUnavailable},
		{"unknown", assert.AnError, http.StatusInternalServerError},
		{"nil", nil, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}
