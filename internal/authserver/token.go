// Package authserver is a minimal in-memory OAuth 2.1 authorization server:
// authorization-code grant with PKCE, dynamic client registration, and HMAC
// signed bearer tokens. All state is process-lifetime only; a restart
// invalidates every registered client, pending code, and issued token.
package authserver

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = time.Hour

// TokenIssuer mints and validates bearer tokens signed with the shared API
// key. Holding the API key therefore equals holding signing authority; that
// is the intended trust model here, not an oversight. The issuer/verifier
// split behind this type is what would let an asymmetric scheme replace it.
type TokenIssuer struct {
	secret   []byte
	issuer   string
	audience string
}

// NewTokenIssuer builds an issuer for the given public base URL.
func NewTokenIssuer(apiKey, issuer string) *TokenIssuer {
	return &TokenIssuer{
		secret:   []byte(apiKey),
		issuer:   issuer,
		audience: issuer + "/mcp",
	}
}

// Issue signs a one-hour bearer token for the client.
func (t *TokenIssuer) Issue(clientID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": t.issuer,
		"aud": t.audience,
		"sub": clientID,
		"iat": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Verify checks signature, expiry, audience and issuer, returning the
// client id the token was issued to. Implements middleware.TokenVerifier.
func (t *TokenIssuer) Verify(raw string) (string, error) {
	token, err := jwt.Parse(raw,
		func(tok *jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithAudience(t.audience),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", errors.Wrap(err, "parse token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token missing subject")
	}
	return sub, nil
}
