package authserver

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
)

const codeTTL = 10 * time.Minute

// Client is a dynamically registered OAuth client. Immutable once created.
type Client struct {
	ID           string   `json:"client_id"`
	Secret       string   `json:"client_secret"`
	RedirectURIs []string `json:"redirect_uris"`
}

// authCode is a pending single-use authorization code with its PKCE binding.
type authCode struct {
	ClientID        string
	RedirectURI     string
	CodeChallenge   string
	ChallengeMethod string
	ExpiresAt       time.Time
}

// Store holds registered clients and pending codes for one authorization
// server instance. Unbounded by design; codes expire on redemption attempt
// and clients only on restart.
type Store struct {
	mu      sync.Mutex
	clients map[string]*Client
	codes   map[string]*authCode
}

func NewStore() *Store {
	return &Store{
		clients: make(map[string]*Client),
		codes:   make(map[string]*authCode),
	}
}

// RegisterClient mints credentials for the given redirect URIs.
func (s *Store) RegisterClient(redirectURIs []string) *Client {
	c := &Client{
		ID:           uuid.NewString(),
		Secret:       randomToken(),
		RedirectURIs: redirectURIs,
	}
	s.mu.Lock()
	s.clients[c.ID] = c
	s.mu.Unlock()
	return c
}

func (s *Store) GetClient(id string) (*Client, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	return c, ok
}

// CreateCode stores a fresh authorization code valid for ten minutes.
func (s *Store) CreateCode(clientID, redirectURI, challenge, method string) string {
	code := randomToken()
	s.mu.Lock()
	s.codes[code] = &authCode{
		ClientID:        clientID,
		RedirectURI:     redirectURI,
		CodeChallenge:   challenge,
		ChallengeMethod: method,
		ExpiresAt:       time.Now().Add(codeTTL),
	}
	s.mu.Unlock()
	return code
}

// GetCode looks a pending code up without consuming it. Expired codes are
// deleted on detection and reported as absent.
func (s *Store) GetCode(code string) (*authCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	if !ok {
		return nil, false
	}
	if time.Now().After(c.ExpiresAt) {
		delete(s.codes, code)
		return nil, false
	}
	return c, true
}

// DeleteCode consumes a code. Called once all exchange checks pass.
func (s *Store) DeleteCode(code string) {
	s.mu.Lock()
	delete(s.codes, code)
	s.mu.Unlock()
}

func randomToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
