package transport

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
)

// Session is one logical MCP connection on the streamable transport,
// created by initialize and addressed by the Mcp-Session-Id header. The
// push channel exists only while a GET stream is attached; detaching does
// not destroy the session.
type Session struct {
	ID string

	mu         sync.Mutex
	push       chan []byte
	once       sync.Once
	terminated chan struct{}
}

func newSession(id string) *Session {
	return &Session{ID: id, terminated: make(chan struct{})}
}

// Attach opens the server-push channel, replacing any previous stream.
func (s *Session) Attach() chan []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.push = make(chan []byte, 16)
	return s.push
}

// Detach removes the push channel if it is still the given one.
func (s *Session) Detach(ch chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.push == ch {
		s.push = nil
	}
}

// Push delivers a frame to the attached stream. Frames are dropped when no
// stream is attached or its buffer is full.
func (s *Session) Push(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.push == nil {
		return false
	}
	select {
	case s.push <- data:
		return true
	default:
		return false
	}
}

// Terminate signals any open stream to close. Safe to call twice.
func (s *Session) Terminate() {
	s.once.Do(func() { close(s.terminated) })
}

// Terminated is closed once the session is deleted.
func (s *Session) Terminated() <-chan struct{} {
	return s.terminated
}

// SessionRegistry is the in-memory session table of one streamable
// transport instance. State is process-lifetime only; a restart drops all
// sessions.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// Create mints a session under a fresh cryptographically random id.
func (r *SessionRegistry) Create() *Session {
	id := newSessionID()
	s := newSession(id)
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return s
}

func (r *SessionRegistry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Delete removes and terminates the session.
func (r *SessionRegistry) Delete(id string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.Terminate()
	}
	return s, ok
}

func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func newSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b)
}
