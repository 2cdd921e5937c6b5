package server

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/deal-tracker/internal/config"
	"github.com/jonathan/deal-tracker/internal/observability"
	"github.com/jonathan/deal-tracker/internal/types"
	"go.uber.org/zap"
)

// Operator is the single editor account allowed to use the triage API.
type Operator struct {
	Username     string
	PasswordHash string
}

// AuthHandler handles operator login.
type AuthHandler struct {
	operator   Operator
	passwords  *config.PasswordConfig
	jwtService *JWTService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(operator Operator, passwords *config.PasswordConfig, jwtService *JWTService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		operator:   operator,
		passwords:  passwords,
		jwtService: jwtService,
		validator:  validator.New(),
		logger:     observability.OrNop(logger),
	}
}

// Login exchanges the operator password for a session token. The username may
// be omitted since there is only one account.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.operator.PasswordHash == "" {
		writeError(w, &ErrFeatureDisabled{Feature: "operator login"})
		return
	}

	var req types.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &ErrValidation{Field: "body", Message: "invalid JSON"})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, validationError(err))
		return
	}

	username := req.Username
	if username == "" {
		username = h.operator.Username
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(h.operator.Username)) == 1
	// bcrypt runs even when the username is wrong.
	passOK := h.passwords.VerifyPassword(req.Password, h.operator.PasswordHash)
	if !userOK || !passOK {
		h.logger.Warn("operator login failed", zap.String("username", username), zap.String("remote", r.RemoteAddr))
		writeError(w, &ErrInvalidCredentials{})
		return
	}

	token, expiresAt, err := h.jwtService.GenerateToken(h.operator.Username)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		writeError(w, err)
		return
	}

	h.logger.Info("operator logged in", zap.String("username", h.operator.Username))
	jsonResponse(w, http.StatusOK, types.LoginResponse{Token: token, ExpiresAt: expiresAt})
}

// validationError converts validator errors into ErrValidation, reporting the
// first failing field.
func validationError(err error) error {
	if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
		ve := validationErrors[0]
		return &ErrValidation{Field: ve.Field(), Message: ve.Tag()}
	}
	return &ErrValidation{Field: "request", Message: fmt.Sprint(err)}
}
