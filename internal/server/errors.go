// Package server provides the HTTP API for triaging candidate deals.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/deal-tracker/internal/actiontoken"
	"github.com/jonathan/deal-tracker/internal/db"
	"github.com/jonathan/deal-tracker/internal/ingestion"
	"github.com/jonathan/deal-tracker/internal/scheduler"
	"github.com/jonathan/deal-tracker/internal/triage"
)

// ErrInvalidCredentials indicates invalid login credentials
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid username or password"
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrFeatureDisabled indicates an endpoint whose backing integration is not configured.
type ErrFeatureDisabled struct {
	Feature string
}

func (e *ErrFeatureDisabled) Error() string {
	return e.Feature + " is not configured"
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validation   *ErrValidation
		fieldErrors  validator.ValidationErrors
		credentials  *ErrInvalidCredentials
		disabled     *ErrFeatureDisabled
		expiredToken *actiontoken.ExpiredError
	)

	switch {
	case errors.As(err, &validation), errors.As(err, &fieldErrors), errors.Is(err, ingestion.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.As(err, &credentials):
		return http.StatusUnauthorized
	case errors.Is(err, db.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, db.ErrDecisionConflict), errors.Is(err, db.ErrDuplicateKey),
		errors.Is(err, scheduler.ErrCycleRunning):
		return http.StatusConflict
	case errors.As(err, &expiredToken):
		return http.StatusGone
	case errors.Is(err, actiontoken.ErrTokenInvalid):
		return http.StatusBadRequest
	case errors.As(err, &disabled), errors.Is(err, triage.ErrActionsDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
