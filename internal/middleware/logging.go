package middleware

import (
	"net/http"
	"time"

	"lawmcp/server/internal/observability"
)

// statusWriter records the response code. Flush is forwarded so streaming
// handlers behind this wrapper still see an http.Flusher.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// RequestLogger pushes one log line per completed request. Long-lived event
// streams log on disconnect.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		observability.LogRequest(r.Method, r.URL.Path, sw.status, time.Since(start).Milliseconds())
	})
}
