package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"lawmcp/server/internal/observability"
)

// ContextKey is the type for context keys
type ContextKey string

// SubjectKey is the context key for the authenticated caller identity:
// "api-key" for shared-secret auth, the OAuth client id for bearer tokens.
const SubjectKey ContextKey = "authSubject"

// TokenVerifier validates a presented bearer credential and returns the
// caller identity. Implemented by the static shared key and by the
// authorization server's token verifier.
type TokenVerifier interface {
	Verify(token string) (subject string, err error)
}

// StaticKey verifies by literal equality against the preconfigured API key.
type StaticKey string

func (k StaticKey) Verify(token string) (string, error) {
	if subtle.ConstantTimeCompare([]byte(token), []byte(k)) != 1 {
		return "", fmt.Errorf("invalid api key")
	}
	return "api-key", nil
}

// Authenticator enforces bearer auth on HTTP transports. When
// resourceMetadata is non-empty (OAuth enabled), 401 responses carry a
// WWW-Authenticate header pointing clients at the discovery document.
type Authenticator struct {
	verifier         TokenVerifier
	resourceMetadata string
}

func NewAuthenticator(verifier TokenVerifier, resourceMetadata string) *Authenticator {
	return &Authenticator{verifier: verifier, resourceMetadata: resourceMetadata}
}

// BearerToken extracts the credential from Authorization: Bearer or the
// x-api-key header.
func BearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimPrefix(auth, "Bearer ")
		}
		return ""
	}
	return r.Header.Get("x-api-key")
}

// Middleware rejects requests without a valid bearer credential.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			observability.LogSecurityEvent("missing_bearer_token", map[string]any{
				"remote_addr": r.RemoteAddr,
				"path":        r.URL.Path,
			})
			a.unauthorized(w)
			return
		}

		subject, err := a.verifier.Verify(token)
		if err != nil {
			observability.LogSecurityEvent("invalid_bearer_token", map[string]any{
				"remote_addr": r.RemoteAddr,
				"path":        r.URL.Path,
				"error":       err.Error(),
			})
			a.unauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), SubjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) unauthorized(w http.ResponseWriter) {
	if a.resourceMetadata != "" {
		w.Header().Set("WWW-Authenticate", fmt.Sprintf("Bearer resource_metadata=%q", a.resourceMetadata))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{"error": "Unauthorized"})
}

// GetSubject extracts the authenticated identity from the request context.
func GetSubject(ctx context.Context) string {
	s, _ := ctx.Value(SubjectKey).(string)
	return s
}
