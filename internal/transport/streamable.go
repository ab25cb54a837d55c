package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"lawmcp/server/internal/jsonrpc"
	"lawmcp/server/internal/middleware"
)

// SessionHeader carries the session id: a response header on initialize,
// a request header on every call after it.
const SessionHeader = "Mcp-Session-Id"

// OAuthProvider mounts the authorization server's endpoints, which must
// stay reachable without a bearer token.
type OAuthProvider interface {
	Mount(r chi.Router)
}

// StreamServer is the streamable HTTP transport: one /mcp resource where
// POST submits a message, GET opens the session's server-push stream and
// DELETE terminates the session.
type StreamServer struct {
	router   *jsonrpc.Router
	sessions *SessionRegistry
	handler  http.Handler
}

// NewStreamServer builds the streamable transport. oauth may be nil when
// the authorization server is disabled.
func NewStreamServer(router *jsonrpc.Router, auth *middleware.Authenticator, oauth OAuthProvider, corsOrigin string) *StreamServer {
	s := &StreamServer{
		router:   router,
		sessions: NewSessionRegistry(),
	}

	limiter := middleware.NewRateLimiter(10)

	r := chi.NewRouter()
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestLogger)
	r.Use(cors.Handler(corsOptions(corsOrigin)))
	r.Get("/health", handleHealth)
	if oauth != nil {
		oauth.Mount(r)
	}
	r.Group(func(pr chi.Router) {
		pr.Use(auth.Middleware)
		pr.Use(limiter.Middleware)
		pr.Post("/mcp", s.handlePost)
		pr.Get("/mcp", s.handleGet)
		pr.Delete("/mcp", s.handleDelete)
	})
	s.handler = r
	return s
}

// Handler exposes the transport as an http.Handler.
func (s *StreamServer) Handler() http.Handler {
	return s.handler
}

// Sessions exposes the registry (used by tests).
func (s *StreamServer) Sessions() *SessionRegistry {
	return s.sessions
}

func (s *StreamServer) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to read body"})
		return
	}
	req, err := jsonrpc.Decode(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON-RPC message"})
		return
	}

	var session *Session
	if req.Method == "initialize" {
		// initialize always starts a new logical connection; any session
		// header the client sent is ignored.
		session = s.sessions.Create()
		log.Printf("session created: %s", session.ID)
	} else {
		id := r.Header.Get(SessionHeader)
		if id == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing Mcp-Session-Id header"})
			return
		}
		var ok bool
		session, ok = s.sessions.Get(id)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session not found"})
			return
		}
	}

	resp := s.router.Handle(r.Context(), req)

	w.Header().Set(SessionHeader, session.ID)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to encode response"})
		return
	}

	if acceptsEventStream(r) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *StreamServer) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing Mcp-Session-Id header"})
		return
	}
	session, ok := s.sessions.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session not found"})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set(SessionHeader, session.ID)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ch := session.Attach()
	// Disconnect detaches the stream but keeps the session alive.
	defer session.Detach(ch)

	for {
		select {
		case msg := <-ch:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		case <-session.Terminated():
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *StreamServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing Mcp-Session-Id header"})
		return
	}
	if _, ok := s.sessions.Delete(id); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session not found"})
		return
	}
	log.Printf("session terminated: %s", id)
	w.WriteHeader(http.StatusOK)
}
