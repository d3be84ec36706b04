package security

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conneroisu/visualtree/internal/logging"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareHeaders(t *testing.T) {
	handler := Middleware(DefaultConfig(nil))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
}

func TestMiddlewareNonceFromContext(t *testing.T) {
	handler := Middleware(DefaultConfig(nil))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithNonce(req.Context(), "ctxnonce"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "'nonce-ctxnonce'")
	assert.Equal(t, "ctxnonce", GetNonceFromContext(req.Context()))
	assert.Equal(t, "", GetNonceFromContext(context.Background()))
}

func TestMiddlewareOriginCheck(t *testing.T) {
	var logs bytes.Buffer
	cfg := DefaultConfig([]string{"http://localhost:7070"})
	cfg.Logger = logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelDebug, Output: &logs})
	handler := Middleware(cfg)(okHandler())

	tests := []struct {
		name   string
		origin string
		ref    string
		want   int
	}{
		{"allowed origin", "http://localhost:7070", "", http.StatusOK},
		{"allowed referer", "", "http://localhost:7070/panel/x", http.StatusOK},
		{"foreign origin", "http://evil.example", "", http.StatusForbidden},
		{"no origin", "", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/csp-report", strings.NewReader("{}"))
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.ref != "" {
				req.Header.Set("Referer", tt.ref)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.Contains(t, logs.String(), "Invalid origin")
}

func TestCSPViolationHandler(t *testing.T) {
	var logs bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelDebug, Output: &logs})
	handler := CSPViolationHandler(logger)

	body := `{"csp-report":{"document-uri":"http://localhost/panel/1","violated-directive":"script-src","blocked-uri":"inline"}}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/csp-report", strings.NewReader(body)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, logs.String(), "script-src")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/csp-report", strings.NewReader("nope")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/csp-report", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", ClientIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "10.0.0.3, 10.0.0.4")
	assert.Equal(t, "10.0.0.3", ClientIP(req))
}
