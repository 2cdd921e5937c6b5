package types

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// LoginRequest represents an operator login to the triage API.
type LoginRequest struct {
	Username string `json:"username" validate:"omitempty,max=100"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the session token issued after a successful login.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Validate validates the LoginRequest using the validator.
func (r *LoginRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
