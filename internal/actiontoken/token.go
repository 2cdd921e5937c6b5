// Package actiontoken signs and verifies the short-lived links that let a
// triage decision travel through email or chat.
//
// A token has the form itemID:action:issuedAtUnix:signature. The signature is
// HMAC-SHA256 over the first three fields, hex encoded and truncated to
// SignatureLength characters.
package actiontoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/deal-tracker/internal/config"
	"github.com/jonathan/deal-tracker/internal/observability"
	"go.uber.org/zap"
)

// Action is a triage transition a token can carry.
type Action string

// Supported actions
const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Valid reports whether a is a supported action.
func (a Action) Valid() bool {
	return a == ActionApprove || a == ActionReject
}

const (
	// DefaultTTL is how long a token stays valid after issue.
	DefaultTTL = 24 * time.Hour
	// SignatureLength is the number of hex characters kept from the MAC.
	SignatureLength = 16
)

// ErrTokenInvalid matches every verification failure.
var ErrTokenInvalid = errors.New("invalid action token")

// Verification failures.
var (
	ErrInvalidFormat    = &tokenError{msg: "invalid token format"}
	ErrInvalidSignature = &tokenError{msg: "invalid token signature"}
	ErrInvalidAction    = &tokenError{msg: "invalid token action"}
)

type tokenError struct {
	msg string
}

func (e *tokenError) Error() string { return e.msg }

func (e *tokenError) Is(target error) bool { return target == ErrTokenInvalid }

// Claims are the fields carried by a token.
type Claims struct {
	ItemID   int64
	Action   Action
	IssuedAt time.Time
}

// ExpiredError reports a token past its TTL. The parsed claims are kept so the
// caller can tell the user which item the link was for.
type ExpiredError struct {
	Claims Claims
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("action token expired (item %d, %s)", e.Claims.ItemID, e.Claims.Action)
}

// Is makes ExpiredError match ErrTokenInvalid.
func (e *ExpiredError) Is(target error) bool { return target == ErrTokenInvalid }

// Signer generates and verifies action tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option customises a Signer.
type Option func(*Signer)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// NewSigner creates a Signer. An empty secret falls back to
// config.DefaultActionSecret with a warning; a non-positive ttl means DefaultTTL.
func NewSigner(secret string, ttl time.Duration, logger *zap.Logger, opts ...Option) *Signer {
	if secret == "" {
		observability.OrNop(logger).Warn("no action secret configured, using development default")
		secret = config.DefaultActionSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// TTL returns the validity window.
func (s *Signer) TTL() time.Duration { return s.ttl }

// Generate issues a token for the item and action, stamped with the current time.
func (s *Signer) Generate(itemID int64, action Action) (string, error) {
	if !action.Valid() {
		observability.ActionTokens.WithLabelValues("invalid_action").Inc()
		return "", ErrInvalidAction
	}
	payload := fmt.Sprintf("%d:%s:%d", itemID, action, s.now().Unix())
	return payload + ":" + s.sign(payload), nil
}

// Verify checks a token. Failures are checked in order: format, expiry,
// signature, action. Every error matches ErrTokenInvalid.
func (s *Signer) Verify(token string) (*Claims, error) {
	claims, err := s.verify(token)
	observability.ActionTokens.WithLabelValues(verifyResult(err)).Inc()
	return claims, err
}

func (s *Signer) verify(token string) (*Claims, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 4 {
		return nil, ErrInvalidFormat
	}

	itemID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, ErrInvalidFormat
	}
	issued, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, ErrInvalidFormat
	}

	claims := Claims{
		ItemID:   itemID,
		Action:   Action(parts[1]),
		IssuedAt: time.Unix(issued, 0).UTC(),
	}

	if s.now().Sub(claims.IssuedAt) > s.ttl {
		return nil, &ExpiredError{Claims: claims}
	}

	expected := s.sign(strings.Join(parts[:3], ":"))
	if !hmac.Equal([]byte(expected), []byte(parts[3])) {
		return nil, ErrInvalidSignature
	}

	if !claims.Action.Valid() {
		return nil, ErrInvalidAction
	}
	return &claims, nil
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))[:SignatureLength]
}

func verifyResult(err error) string {
	var expired *ExpiredError
	switch {
	case err == nil:
		return "valid"
	case errors.As(err, &expired):
		return "expired"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrInvalidAction):
		return "invalid_action"
	default:
		return "invalid_format"
	}
}

// ActionURL builds the link a recipient clicks to apply the token.
func ActionURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/api/action?token=" + url.QueryEscape(token)
}
