package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

func TestLoggingMiddlewareLogsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPut, "/status/house/lights", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	line := buf.String()
	for _, want := range []string{"method=PUT", "path=/status/house/lights", "status=201"} {
		if !strings.Contains(line, want) {
			t.Errorf("log line missing %q: %s", want, line)
		}
	}
}

func TestLoggingMiddlewareLogsStatusURLFromRouteVars(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	router := mux.NewRouter()
	router.Use(LoggingMiddleware(logger))
	router.HandleFunc("/status/{rest:.*}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/status/house/lights", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if got := buf.String(); !strings.Contains(got, "status_url=status://house/lights") {
		t.Errorf("expected log line to carry the resolved status_url, got: %s", got)
	}
}

func TestLoggingMiddlewareLogsTargetIDFromRouteVars(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	router := mux.NewRouter()
	router.Use(LoggingMiddleware(logger))
	router.HandleFunc("/button/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/button/porch-light", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if got := buf.String(); !strings.Contains(got, "target_id=porch-light") {
		t.Errorf("expected log line to carry the dispatched target id, got: %s", got)
	}
}
