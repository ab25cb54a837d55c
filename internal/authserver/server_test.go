package authserver

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

const (
	testAPIKey = "super-secret-key"
	testIssuer = "https://laws.example.com"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(testAPIKey, testIssuer)
	r := chi.NewRouter()
	s.Mount(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return s, ts
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func registerClient(t *testing.T, ts *httptest.Server, redirectURI string) (id, secret string) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/oauth/register", "application/json",
		strings.NewReader(`{"redirect_uris":["`+redirectURI+`"]}`))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want 201", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	return body["client_id"].(string), body["client_secret"].(string)
}

// authorize submits the consent form and returns the minted code.
func authorize(t *testing.T, ts *httptest.Server, clientID, redirectURI, challenge, method string) string {
	t.Helper()
	form := url.Values{
		"client_id":             {clientID},
		"redirect_uri":          {redirectURI},
		"state":                 {"xyz"},
		"code_challenge":        {challenge},
		"code_challenge_method": {method},
		"api_key":               {testAPIKey},
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.PostForm(ts.URL+"/oauth/authorize", form)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("authorize status = %d, want 302", resp.StatusCode)
	}
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	if got := loc.Query().Get("state"); got != "xyz" {
		t.Errorf("state = %q, want xyz", got)
	}
	code := loc.Query().Get("code")
	if code == "" {
		t.Fatal("redirect carries no code")
	}
	return code
}

func s256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func TestDiscoveryDocuments(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/.well-known/oauth-protected-resource")
	if err != nil {
		t.Fatalf("protected-resource: %v", err)
	}
	body := decodeBody(t, resp)
	if body["resource"] != testIssuer+"/mcp" {
		t.Errorf("resource = %v", body["resource"])
	}

	resp2, err := http.Get(ts.URL + "/.well-known/oauth-authorization-server")
	if err != nil {
		t.Fatalf("authorization-server: %v", err)
	}
	meta := decodeBody(t, resp2)
	if meta["issuer"] != testIssuer {
		t.Errorf("issuer = %v", meta["issuer"])
	}
	if meta["token_endpoint"] != testIssuer+"/oauth/token" {
		t.Errorf("token_endpoint = %v", meta["token_endpoint"])
	}
}

func TestConsentFormEscapesValues(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/oauth/authorize?client_id=" +
		url.QueryEscape(`<script>alert(1)</script>`))
	if err != nil {
		t.Fatalf("GET authorize: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if strings.Contains(string(raw), "<script>alert(1)</script>") {
		t.Error("client_id rendered unescaped")
	}
}

func TestAuthorizeWrongAPIKey(t *testing.T) {
	s, ts := newTestServer(t)

	form := url.Values{
		"client_id":    {"whatever"},
		"redirect_uri": {"http://localhost:8080/cb"},
		"api_key":      {"not-the-key"},
	}
	resp, err := http.PostForm(ts.URL+"/oauth/authorize", form)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "Incorrect API key") {
		t.Error("error message missing from form")
	}
	s.store.mu.Lock()
	pending := len(s.store.codes)
	s.store.mu.Unlock()
	if pending != 0 {
		t.Errorf("%d codes created on failed consent", pending)
	}
}

func TestAuthorizeUnknownClientUntrustedRedirect(t *testing.T) {
	_, ts := newTestServer(t)

	form := url.Values{
		"client_id":    {"nobody"},
		"redirect_uri": {"https://evil.example.com/cb"},
		"api_key":      {testAPIKey},
	}
	resp, err := http.PostForm(ts.URL+"/oauth/authorize", form)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "Client not registered") {
		t.Error("expected registration error in form")
	}
}

func TestAuthorizeUnregisteredLoopbackClient(t *testing.T) {
	_, ts := newTestServer(t)
	code := authorize(t, ts, "local-cli", "http://localhost:9999/cb", "", "")
	if code == "" {
		t.Fatal("loopback client denied")
	}
}

func TestTokenExchangeSucceedsExactlyOnce(t *testing.T) {
	s, ts := newTestServer(t)
	redirectURI := "http://localhost:8080/cb"
	clientID, clientSecret := registerClient(t, ts, redirectURI)

	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	code := authorize(t, ts, clientID, redirectURI, s256Challenge(verifier), "S256")

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"code_verifier": {verifier},
	}
	resp, err := http.PostForm(ts.URL+"/oauth/token", form)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("token status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["token_type"] != "Bearer" {
		t.Errorf("token_type = %v", body["token_type"])
	}
	if body["expires_in"] != float64(3600) {
		t.Errorf("expires_in = %v", body["expires_in"])
	}

	subject, err := s.Tokens().Verify(body["access_token"].(string))
	if err != nil {
		t.Fatalf("issued token fails verification: %v", err)
	}
	if subject != clientID {
		t.Errorf("subject = %q, want %q", subject, clientID)
	}

	// The code is single use.
	resp2, err := http.PostForm(ts.URL+"/oauth/token", form)
	if err != nil {
		t.Fatalf("second exchange: %v", err)
	}
	if resp2.StatusCode != http.StatusBadRequest {
		t.Errorf("second exchange status = %d, want 400", resp2.StatusCode)
	}
	if body2 := decodeBody(t, resp2); body2["error"] != "invalid_grant" {
		t.Errorf("error = %v, want invalid_grant", body2["error"])
	}
}

func TestTokenExchangeRejections(t *testing.T) {
	_, ts := newTestServer(t)
	redirectURI := "http://localhost:8080/cb"
	clientID, clientSecret := registerClient(t, ts, redirectURI)
	verifier := "correct-horse-battery-staple-correct-horse"
	challenge := s256Challenge(verifier)

	baseForm := func(code string) url.Values {
		return url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {code},
			"redirect_uri":  {redirectURI},
			"client_id":     {clientID},
			"client_secret": {clientSecret},
			"code_verifier": {verifier},
		}
	}

	tests := []struct {
		name    string
		mutate  func(url.Values)
		wantErr string
	}{
		{
			name:    "wrong grant type",
			mutate:  func(f url.Values) { f.Set("grant_type", "client_credentials") },
			wantErr: "unsupported_grant_type",
		},
		{
			name:    "unknown code",
			mutate:  func(f url.Values) { f.Set("code", "no-such-code") },
			wantErr: "invalid_grant",
		},
		{
			name:    "redirect mismatch",
			mutate:  func(f url.Values) { f.Set("redirect_uri", "http://localhost:1/other") },
			wantErr: "invalid_grant",
		},
		{
			name:    "wrong verifier",
			mutate:  func(f url.Values) { f.Set("code_verifier", "not-the-verifier-we-promised-before") },
			wantErr: "invalid_grant",
		},
		{
			name:    "wrong client id",
			mutate:  func(f url.Values) { f.Set("client_id", "imposter") },
			wantErr: "invalid_grant",
		},
		{
			name:    "wrong client secret",
			mutate:  func(f url.Values) { f.Set("client_secret", "wrong-secret") },
			wantErr: "invalid_client",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := authorize(t, ts, clientID, redirectURI, challenge, "S256")
			form := baseForm(code)
			tt.mutate(form)
			resp, err := http.PostForm(ts.URL+"/oauth/token", form)
			if err != nil {
				t.Fatalf("token: %v", err)
			}
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			if body := decodeBody(t, resp); body["error"] != tt.wantErr {
				t.Errorf("error = %v, want %s", body["error"], tt.wantErr)
			}
		})
	}
}

func TestTokenExchangeBasicAuth(t *testing.T) {
	_, ts := newTestServer(t)
	redirectURI := "http://localhost:8080/cb"
	clientID, clientSecret := registerClient(t, ts, redirectURI)
	verifier := "a-perfectly-reasonable-code-verifier-string"
	code := authorize(t, ts, clientID, redirectURI, s256Challenge(verifier), "S256")

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"code_verifier": {verifier},
	}
	req, _ := http.NewRequest("POST", ts.URL+"/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(clientID, clientSecret)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["access_token"] == nil {
		t.Error("no access_token in response")
	}
}

func TestTokenVerifyRejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer(testAPIKey, testIssuer)

	claims := jwt.MapClaims{
		"iss": testIssuer,
		"aud": testIssuer + "/mcp",
		"sub": "some-client",
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAPIKey))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := issuer.Verify(expired); err == nil {
		t.Error("expired token accepted")
	}
}

func TestTokenVerifyRejectsWrongAudience(t *testing.T) {
	issuer := NewTokenIssuer(testAPIKey, testIssuer)

	claims := jwt.MapClaims{
		"iss": testIssuer,
		"aud": "https://other.example.com/mcp",
		"sub": "some-client",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAPIKey))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := issuer.Verify(tok); err == nil {
		t.Error("wrong-audience token accepted")
	}
}

func TestTokenVerifyRejectsWrongKey(t *testing.T) {
	issuer := NewTokenIssuer(testAPIKey, testIssuer)
	forged := NewTokenIssuer("attacker-key", testIssuer)

	tok, err := forged.Issue("attacker")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Verify(tok); err == nil {
		t.Error("token signed with wrong key accepted")
	}
}

func TestCodeExpiry(t *testing.T) {
	s := NewStore()
	code := s.CreateCode("client", "http://localhost/cb", "", "")

	s.mu.Lock()
	s.codes[code].ExpiresAt = time.Now().Add(-time.Minute)
	s.mu.Unlock()

	if _, ok := s.GetCode(code); ok {
		t.Error("expired code returned")
	}
	s.mu.Lock()
	_, still := s.codes[code]
	s.mu.Unlock()
	if still {
		t.Error("expired code not deleted on detection")
	}
}

func TestPlainPKCE(t *testing.T) {
	if !verifyPKCE("plain-value", "plain", "plain-value") {
		t.Error("matching plain verifier rejected")
	}
	if verifyPKCE("plain-value", "plain", "other") {
		t.Error("mismatched plain verifier accepted")
	}
	if verifyPKCE("x", "unknown-method", "x") {
		t.Error("unknown challenge method accepted")
	}
}
