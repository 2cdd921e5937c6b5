package types

import (
	"github.com/go-playground/validator/v10"
)

// AcceptRequest carries curator overrides for an approval. Nil fields fall back
// to the item's latest extraction.
type AcceptRequest struct {
	Company         *string          `json:"company,omitempty" validate:"omitempty,max=300"`
	Investors       *string          `json:"investors,omitempty" validate:"omitempty,max=2000"`
	Amount          *string          `json:"amount,omitempty" validate:"omitempty,max=200"`
	TransactionType *TransactionType `json:"transaction_type,omitempty" validate:"omitempty,vocab"`
	CapitalSources  *CapitalSources  `json:"capital_sources,omitempty" validate:"omitempty,vocab"`
	Sectors         *Sectors         `json:"sectors,omitempty" validate:"omitempty,vocab"`
	Location        *string          `json:"location,omitempty" validate:"omitempty,max=300"`
	Summary         *string          `json:"summary,omitempty" validate:"omitempty,max=5000"`
	Notes           *string          `json:"notes,omitempty" validate:"omitempty,max=5000"`
	CuratedBy       string           `json:"curated_by,omitempty" validate:"omitempty,max=100"`
}

// RejectRequest carries an optional rejection reason.
type RejectRequest struct {
	Reason     *string `json:"reason,omitempty" validate:"omitempty,max=1000"`
	RejectedBy string  `json:"rejected_by,omitempty" validate:"omitempty,max=100"`
}

// SubmitRequest is a manual URL submission.
type SubmitRequest struct {
	URL     string  `json:"url" validate:"required,url"`
	Title   string  `json:"title,omitempty" validate:"omitempty,max=500"`
	Summary *string `json:"summary,omitempty" validate:"omitempty,max=5000"`
}

// NewValidator returns a validator with the category vocabulary rule registered as "vocab".
func NewValidator() *validator.Validate {
	v := validator.New()
	// RegisterValidation only fails on an empty tag or nil func.
	_ = v.RegisterValidation("vocab", validateVocabulary)
	return v
}

func validateVocabulary(fl validator.FieldLevel) bool {
	switch val := fl.Field().Interface().(type) {
	case TransactionType:
		return val.Valid()
	case CapitalSources:
		for _, c := range val {
			if !c.Valid() {
				return false
			}
		}
		return true
	case Sectors:
		for _, s := range val {
			if !s.Valid() {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Validate validates the AcceptRequest, including category vocabularies.
func (r *AcceptRequest) Validate() error {
	return NewValidator().Struct(r)
}

// Validate validates the RejectRequest using the validator.
func (r *RejectRequest) Validate() error {
	return NewValidator().Struct(r)
}

// Validate validates the SubmitRequest using the validator.
func (r *SubmitRequest) Validate() error {
	return NewValidator().Struct(r)
}
