package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestIDMiddlewareGeneratesAndPreservesID(t *testing.T) {
	tests := []struct {
		name       string
		existingID string
	}{
		{name: "generates new ID when not present", existingID: ""},
		{name: "preserves existing ID", existingID: "existing-request-id-123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requestID := GetRequestID(r.Context())
				if requestID == "" {
					t.Error("request ID not found in context")
				}
				if tt.existingID != "" && requestID != tt.existingID {
					t.Errorf("expected request ID %s, got %s", tt.existingID, requestID)
				}
				w.WriteHeader(http.StatusOK)
			})

			wrapped := RequestIDMiddleware(handler)

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.existingID != "" {
				req.Header.Set(RequestIDHeader, tt.existingID)
			}
			rr := httptest.NewRecorder()
			wrapped.ServeHTTP(rr, req)

			headerID := rr.Header().Get(RequestIDHeader)
			if headerID == "" {
				t.Error("X-Request-ID header not set in response")
			}
			if tt.existingID != "" && headerID != tt.existingID {
				t.Errorf("expected header %s, got %s", tt.existingID, headerID)
			}
		})
	}
}

func TestGetRequestIDAbsentReturnsEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if id := GetRequestID(req.Context()); id != "" {
		t.Errorf("expected empty request ID, got %q", id)
	}
}
