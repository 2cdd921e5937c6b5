package server

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonathan/deal-tracker/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret-key-for-jwt-signing-minimum-32-bytes"

func setupTestJWTService(_ *testing.T, expirationHours int) *JWTService {
	return NewJWTService(&config.JWTConfig{Secret: testJWTSecret, ExpirationHours: expirationHours})
}

func TestJWTService_RoundTrip(t *testing.T) {
	service := setupTestJWTService(t, 24)

	token, expiresAt, err := service.GenerateToken("editor")
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expiresAt, time.Minute)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	subject, err := claims.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, "editor", subject)
	assert.Equal(t, tokenIssuer, claims.Issuer)
	assert.Len(t, claims.ID, 36)
}

func TestJWTService_UniqueTokens(t *testing.T) {
	service := setupTestJWTService(t, 24)

	a, _, err := service.GenerateToken("editor")
	require.NoError(t, err)
	b, _, err := service.GenerateToken("editor")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "jti differs per token")
}

func TestJWTService_ValidateToken_Errors(t *testing.T) {
	service := setupTestJWTService(t, 1)
	valid, _, err := service.GenerateToken("editor")
	require.NoError(t, err)

	expiredService := setupTestJWTService(t, 1)
	expiredService.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := expiredService.GenerateToken("editor")
	require.NoError(t, err)

	otherSecret := NewJWTService(&config.JWTConfig{Secret: "another-secret-of-sufficient-length!!", ExpirationHours: 1})
	forged, _, err := otherSecret.GenerateToken("editor")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "editor", Issuer: tokenIssuer}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr string
	}{
		{"empty", "", "token string is empty"},
		{"malformed", "not.a.jwt", "malformed token"},
		{"expired", expired, "token expired"},
		{"wrong secret", forged, "invalid token signature"},
		{"alg none", unsigned, "failed to parse token"},
		{"tampered", tamperSignature(valid), "invalid token signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.ValidateToken(tt.token)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// tamperSignature flips one character in the middle of the signature segment.
func tamperSignature(token string) string {
	i := strings.LastIndex(token, ".") + 10
	replacement := byte('A')
	if token[i] == 'A' {
		replacement = 'B'
	}
	return token[:i] + string(replacement) + token[i+1:]
}

func TestJWTService_AsTokenValidator(t *testing.T) {
	service := setupTestJWTService(t, 1)
	token, _, err := service.GenerateToken("editor")
	require.NoError(t, err)

	claims, err := service.AsTokenValidator().ValidateToken(token)
	require.NoError(t, err)
	subject, _ := claims.GetSubject()
	assert.Equal(t, "editor", subject)

	_, err = service.AsTokenValidator().ValidateToken("garbage")
	assert.Error(t, err)
}
