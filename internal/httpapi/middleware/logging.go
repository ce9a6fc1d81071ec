package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// LoggingMiddleware logs every request's method, path, status, duration,
// and size via slog. Beyond the raw path it logs the status-tree address
// the request actually touched: the {rest} wildcard for /status and
// /ws/status requests, or the button/host id for action-dispatch requests.
// That address, not the route template, is what an operator searching the
// log for "what happened to status://house/lights" needs.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			args := []any{
				"request_id", GetRequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"status", rw.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"size_bytes", rw.size,
				"remote_addr", r.RemoteAddr,
			}
			if vars := mux.Vars(r); len(vars) > 0 {
				if rest, ok := vars["rest"]; ok {
					args = append(args, "status_url", "status://"+rest)
				}
				if id, ok := vars["id"]; ok {
					args = append(args, "target_id", id)
				}
			}

			logger.Info("http request", args...)
		})
	}
}
