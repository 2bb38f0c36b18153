package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/newgpp/parksuite-core/internal/biz"
)

type traceIDKey struct{}

// traceIDFromRequest extracts the X-Trace-Id a caller propagated from the
// request context.
func traceIDFromRequest(r *http.Request) string {
	if v, ok := r.Context().Value(traceIDKey{}).(string); ok {
		return v
	}
	return ""
}

// traceIDMiddleware assigns an X-Trace-Id (taking the caller's value if
// present) and attaches it to the request context for biz.WithTraceID
// propagation to the business API.
func (s *Server) traceIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-Id")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), traceIDKey{}, traceID)
		ctx = biz.WithTraceID(ctx, traceID)
		w.Header().Set("X-Trace-Id", traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// corsMiddleware adds permissive CORS headers, matching the single-origin
// trust model this service runs behind.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Trace-Id")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request with zerolog and records the
// Prometheus request-duration/total series.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		elapsed := time.Since(start)
		route := r.URL.Path
		if s.metrics != nil {
			s.metrics.Observe(route, r.Method, wrapped.statusCode, elapsed)
		}
		s.log.Info().
			Str("method", r.Method).
			Str("path", route).
			Str("trace_id", traceIDFromRequest(r)).
			Int("status", wrapped.statusCode).
			Dur("elapsed", elapsed).
			Msg("http_request")
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code for
// logging and metrics.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
