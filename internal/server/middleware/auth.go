// Package middleware provides HTTP middleware for operator authentication and request tracing.
package middleware

import (
	"context"
	"net/http"
	"strings"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// operatorKey is the context key for the authenticated operator name.
const operatorKey ContextKey = "operator"

// TokenValidator validates session tokens. The server's JWT service satisfies
// it without this package importing the server.
type TokenValidator interface {
	ValidateToken(tokenString string) (SubjectGetter, error)
}

// SubjectGetter exposes the token subject (the operator name).
// jwt.RegisteredClaims implements it.
type SubjectGetter interface {
	GetSubject() (string, error)
}

// AuthMiddleware rejects requests without a valid bearer token and stores the
// operator name in the request context.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				unauthorized(w)
				return
			}
			subject, err := claims.GetSubject()
			if err != nil || subject == "" {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), subject)))
		})
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, bool) {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], parts[1] != ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
}

// WithOperator returns a context carrying the operator name.
func WithOperator(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operatorKey, name)
}

// Operator returns the authenticated operator, if any.
func Operator(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(operatorKey).(string)
	return name, ok && name != ""
}
