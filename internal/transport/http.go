package transport

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// corsOptions builds the shared CORS policy. An empty origin means "*".
func corsOptions(origin string) cors.Options {
	allowed := []string{"*"}
	if origin != "" {
		allowed = []string{origin}
	}
	return cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "x-api-key", "Mcp-Session-Id", "Accept"},
		ExposedHeaders: []string{"Mcp-Session-Id"},
		MaxAge:         300,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// acceptsEventStream reports whether the client negotiated a streamed reply.
func acceptsEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}
