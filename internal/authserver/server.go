package authserver

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"lawmcp/server/internal/observability"
)

// trustedRedirectPrefixes allows unregistered clients whose redirect target
// is loopback, covering local MCP clients that skip dynamic registration.
var trustedRedirectPrefixes = []string{
	"http://localhost",
	"http://127.0.0.1",
	"https://localhost",
}

// Server wires the OAuth endpoints onto a chi router. One instance owns its
// client/code store and token issuer; nothing here is process-global.
type Server struct {
	store  *Store
	tokens *TokenIssuer
	apiKey string
	issuer string
}

// New builds an authorization server rooted at the public base URL.
func New(apiKey, issuer string) *Server {
	return &Server{
		store:  NewStore(),
		tokens: NewTokenIssuer(apiKey, issuer),
		apiKey: apiKey,
		issuer: issuer,
	}
}

// Tokens exposes the issuer so the transport can verify bearer tokens.
func (s *Server) Tokens() *TokenIssuer {
	return s.tokens
}

// ResourceMetadataURL is the discovery URL advertised in WWW-Authenticate.
func (s *Server) ResourceMetadataURL() string {
	return s.issuer + "/.well-known/oauth-protected-resource"
}

// Mount registers all OAuth endpoints. They stay outside bearer-token
// enforcement; a client calls them precisely because it has no token yet.
func (s *Server) Mount(r chi.Router) {
	r.Get("/.well-known/oauth-protected-resource", s.handleProtectedResource)
	r.Get("/.well-known/oauth-authorization-server", s.handleServerMetadata)
	r.Post("/oauth/register", s.handleRegister)
	r.Get("/oauth/authorize", s.handleAuthorizeForm)
	r.Post("/oauth/authorize", s.handleAuthorizeSubmit)
	r.Post("/oauth/token", s.handleToken)
}

func (s *Server) handleProtectedResource(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"resource":              s.issuer + "/mcp",
		"authorization_servers": []string{s.issuer},
		"bearer_methods_supported": []string{
			"header",
		},
	})
}

func (s *Server) handleServerMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                s.issuer,
		"authorization_endpoint":                s.issuer + "/oauth/authorize",
		"token_endpoint":                        s.issuer + "/oauth/token",
		"registration_endpoint":                 s.issuer + "/oauth/register",
		"response_types_supported":              []string{"code"},
		"grant_types_supported":                 []string{"authorization_code"},
		"code_challenge_methods_supported":      []string{"S256"},
		"token_endpoint_auth_methods_supported": []string{"client_secret_post", "client_secret_basic", "none"},
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RedirectURIs []string `json:"redirect_uris"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeOAuthError(w, "invalid_client_metadata", "request body is not valid JSON")
		return
	}
	// TODO: validate redirect URI syntax and reject non-https non-loopback
	// targets before storing.
	client := s.store.RegisterClient(body.RedirectURIs)
	observability.LogSecurityEvent("oauth_client_registered", map[string]any{
		"client_id": client.ID,
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"client_id":                  client.ID,
		"client_secret":              client.Secret,
		"redirect_uris":              client.RedirectURIs,
		"grant_types":                []string{"authorization_code"},
		"response_types":             []string{"code"},
		"token_endpoint_auth_method": "client_secret_post",
	})
}

func (s *Server) handleAuthorizeForm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.renderConsent(w, http.StatusOK, consentData{
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	})
}

func (s *Server) handleAuthorizeSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	data := consentData{
		ClientID:            r.PostFormValue("client_id"),
		RedirectURI:         r.PostFormValue("redirect_uri"),
		State:               r.PostFormValue("state"),
		CodeChallenge:       r.PostFormValue("code_challenge"),
		CodeChallengeMethod: r.PostFormValue("code_challenge_method"),
	}

	if subtle.ConstantTimeCompare([]byte(r.PostFormValue("api_key")), []byte(s.apiKey)) != 1 {
		observability.LogSecurityEvent("oauth_consent_bad_key", map[string]any{
			"client_id":   data.ClientID,
			"remote_addr": r.RemoteAddr,
		})
		data.Error = "Incorrect API key."
		s.renderConsent(w, http.StatusBadRequest, data)
		return
	}

	if !s.clientAllowed(data.ClientID, data.RedirectURI) {
		data.Error = "Client not registered."
		s.renderConsent(w, http.StatusBadRequest, data)
		return
	}

	code := s.store.CreateCode(data.ClientID, data.RedirectURI, data.CodeChallenge, data.CodeChallengeMethod)
	observability.LogSecurityEvent("oauth_code_issued", map[string]any{
		"client_id": data.ClientID,
	})

	redirect, err := url.Parse(data.RedirectURI)
	if err != nil {
		data.Error = "Invalid redirect URI."
		s.renderConsent(w, http.StatusBadRequest, data)
		return
	}
	q := redirect.Query()
	q.Set("code", code)
	if data.State != "" {
		q.Set("state", data.State)
	}
	redirect.RawQuery = q.Encode()
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

// clientAllowed accepts dynamically registered clients and, as a fallback,
// unregistered clients redirecting to a trusted loopback prefix.
func (s *Server) clientAllowed(clientID, redirectURI string) bool {
	if _, ok := s.store.GetClient(clientID); ok {
		return true
	}
	for _, prefix := range trustedRedirectPrefixes {
		if strings.HasPrefix(redirectURI, prefix) {
			return true
		}
	}
	return false
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, "invalid_request", "malformed form body")
		return
	}
	if gt := r.PostFormValue("grant_type"); gt != "authorization_code" {
		writeOAuthError(w, "unsupported_grant_type", "only authorization_code is supported")
		return
	}

	clientID := r.PostFormValue("client_id")
	clientSecret := r.PostFormValue("client_secret")
	if basicID, basicSecret, ok := r.BasicAuth(); ok {
		clientID, clientSecret = basicID, basicSecret
	}

	code := r.PostFormValue("code")
	stored, ok := s.store.GetCode(code)
	if !ok {
		writeOAuthError(w, "invalid_grant", "authorization code is invalid or expired")
		return
	}
	if stored.ClientID != clientID {
		writeOAuthError(w, "invalid_grant", "code was issued to a different client")
		return
	}
	if stored.RedirectURI != r.PostFormValue("redirect_uri") {
		writeOAuthError(w, "invalid_grant", "redirect_uri does not match")
		return
	}
	if !verifyPKCE(stored.CodeChallenge, stored.ChallengeMethod, r.PostFormValue("code_verifier")) {
		writeOAuthError(w, "invalid_grant", "PKCE verification failed")
		return
	}
	if client, ok := s.store.GetClient(clientID); ok && clientSecret != "" {
		if subtle.ConstantTimeCompare([]byte(client.Secret), []byte(clientSecret)) != 1 {
			writeOAuthError(w, "invalid_client", "client secret mismatch")
			return
		}
	}

	s.store.DeleteCode(code)

	token, err := s.tokens.Issue(clientID)
	if err != nil {
		observability.LogError("oauth_token_issue", err)
		writeOAuthError(w, "server_error", "failed to issue token")
		return
	}
	observability.LogSecurityEvent("oauth_token_issued", map[string]any{
		"client_id": clientID,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

// verifyPKCE checks the code verifier against the stored challenge. An
// empty stored challenge skips PKCE, matching clients that never sent one.
func verifyPKCE(challenge, method, verifier string) bool {
	if challenge == "" {
		return true
	}
	switch method {
	case "S256", "":
		sum := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
	case "plain":
		return subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) == 1
	default:
		return false
	}
}

func (s *Server) renderConsent(w http.ResponseWriter, status int, data consentData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := consentTemplate.Execute(w, data); err != nil {
		observability.LogError("oauth_consent_render", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeOAuthError(w http.ResponseWriter, code, description string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error":             code,
		"error_description": description,
	})
}
