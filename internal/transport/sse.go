package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"lawmcp/server/internal/jsonrpc"
	"lawmcp/server/internal/middleware"
)

// DefaultHeartbeat keeps intermediaries from closing idle event streams.
const DefaultHeartbeat = 15 * time.Second

// EventServer is the legacy SSE transport: clients open GET /events for a
// long-lived push stream and submit messages on POST /messages. Every
// router response is broadcast to all open streams. There is no routing of
// a response back to its submitter, so this transport only suits
// single-subscriber deployments; with zero open streams responses are
// silently lost, which is expected, not a bug.
type EventServer struct {
	router    *jsonrpc.Router
	heartbeat time.Duration
	handler   http.Handler

	mu    sync.Mutex
	conns map[*eventConn]struct{}
}

// NewEventServer builds the legacy transport around the shared router.
// heartbeat <= 0 selects DefaultHeartbeat.
func NewEventServer(router *jsonrpc.Router, auth *middleware.Authenticator, corsOrigin string, heartbeat time.Duration) *EventServer {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	s := &EventServer{
		router:    router,
		heartbeat: heartbeat,
		conns:     make(map[*eventConn]struct{}),
	}

	limiter := middleware.NewRateLimiter(10)

	r := chi.NewRouter()
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestLogger)
	r.Use(cors.Handler(corsOptions(corsOrigin)))
	r.Get("/health", handleHealth)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.Middleware)
		pr.Use(limiter.Middleware)
		pr.Get("/events", s.handleEvents)
		pr.Post("/messages", s.handleMessages)
	})
	s.handler = r
	return s
}

// Handler exposes the transport as an http.Handler.
func (s *EventServer) Handler() http.Handler {
	return s.handler
}

// ConnCount reports the number of open event streams.
func (s *EventServer) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// eventConn is one open /events stream. The mutex serializes frame writes
// from broadcasts and the heartbeat goroutine.
type eventConn struct {
	mu sync.Mutex
	w  http.ResponseWriter
	f  http.Flusher
}

func (c *eventConn) writeEvent(event string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	c.f.Flush()
	return nil
}

func (c *eventConn) writeComment(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.w, ": %s\n\n", text); err != nil {
		return err
	}
	c.f.Flush()
	return nil
}

func (s *EventServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	conn := &eventConn{w: w, f: flusher}
	if err := conn.writeComment("connected"); err != nil {
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	log.Printf("event stream opened (%d open)", s.ConnCount())

	defer func() {
		s.remove(conn)
		log.Printf("event stream closed (%d open)", s.ConnCount())
	}()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.writeComment("heartbeat"); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func (s *EventServer) handleMessages(w http.ResponseWriter, r *http.Request) {
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

	if resp := s.router.Handle(r.Context(), req); resp != nil {
		s.broadcast(resp)
	}

	// The real reply travels over the event stream; the POST itself is
	// always just accepted.
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// broadcast fans one response out to every open stream, dropping streams
// whose writes fail.
func (s *EventServer) broadcast(resp *jsonrpc.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}

	s.mu.Lock()
	conns := make([]*eventConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := c.writeEvent("message", data); err != nil {
			s.remove(c)
		}
	}
}

func (s *EventServer) remove(c *eventConn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}
