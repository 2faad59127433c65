package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheControlHeaders(t *testing.T) {
	handler := SecurityHeadersMiddleware(okHandler(http.StatusOK))

	tests := []struct {
		path    string
		noStore bool
	}{
		{"/dashboard/cyber", true},
		{"/avatars/alice", true},
		{"/api/v1/incidents", true},
		{"/static/style.css", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))

			cc := rr.Header().Get("Cache-Control")
			if tt.noStore {
				assert.Contains(t, cc, "no-store")
				assert.Equal(t, "no-cache", rr.Header().Get("Pragma"))
			} else {
				assert.NotContains(t, cc, "no-store")
			}
		})
	}
}
