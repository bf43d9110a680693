package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// logging wraps a handler with request logging and the request metric.
func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		s.metrics.RecordHTTPRequest(r.Method, metricPath(r.URL.Path), strconv.Itoa(rw.status), duration)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration", duration,
			"remote_addr", r.RemoteAddr,
		)
	})
}

// auth enforces basic auth when credentials are configured. Health and
// metrics stay open so probes and scrapers work without secrets.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AuthPassword == "" || r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || !s.credentialsMatch(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="qiyas"`)
			s.jsonError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) credentialsMatch(user, pass string) bool {
	u := subtle.ConstantTimeCompare([]byte(user), []byte(s.cfg.AuthUsername))
	p := subtle.ConstantTimeCompare([]byte(pass), []byte(s.cfg.AuthPassword))
	return u&p == 1
}

// metricPath collapses per-session paths so the request metric keeps a
// bounded label set.
func metricPath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/stream/"):
		return "/api/stream/:id"
	case strings.HasPrefix(path, "/api/cancel/"):
		return "/api/cancel/:id"
	}
	switch path {
	case "/api/query", "/api/models", "/health", "/metrics", "/debug/memory":
		return path
	}
	return "other"
}

// responseWriter captures the status code for logging.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Flush forwards to the wrapped writer so event streams keep flowing
// through the middleware chain.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
