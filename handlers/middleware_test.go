package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"intelplatform/metrics"
)

func okHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeadersMiddleware(okHandler(http.StatusOK)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "SAMEORIGIN",
		"X-XSS-Protection":       "1; mode=block",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	} {
		assert.Equal(t, want, rr.Header().Get(header), header)
	}

	csp := rr.Header().Get("Content-Security-Policy")
	for _, directive := range []string{
		"default-src 'self'",
		"script-src 'self' 'unsafe-inline' https://unpkg.com",
		"img-src 'self' data:",
	} {
		assert.Contains(t, csp, directive)
	}
}

func TestLoggingMiddlewareRequestID(t *testing.T) {
	handler := LoggingMiddleware(zap.NewNop(), okHandler(http.StatusTeapot))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, http.StatusTeapot, rr.Code, "wrapped status passes through")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"), "caller's request id is kept")
}

func TestMetricsMiddlewareCountsByStatus(t *testing.T) {
	counter := metrics.HTTPRequests.WithLabelValues(http.MethodDelete, "418")
	before := testutil.ToFloat64(counter)

	rr := httptest.NewRecorder()
	MetricsMiddleware(okHandler(http.StatusTeapot)).ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/x", nil))

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{"preflight echoes origin", http.MethodOptions, "http://example.com", "http://example.com", http.StatusOK},
		{"no origin allows any", http.MethodGet, "", "*", http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/me", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			CORSMiddleware(okHandler(http.StatusAccepted)).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "POST, GET, OPTIONS, PUT, PATCH, DELETE", rr.Header().Get("Access-Control-Allow-Methods"))
			assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "Authorization")
		})
	}
}
