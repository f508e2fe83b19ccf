package middleware

import (
	"crypto/tls"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecurityHeaders_Defaults(t *testing.T) {
	handler := SecurityHeaders(SecurityHeadersConfig{Env: "development"})(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/users/1/baseline", nil))

	tests := []struct {
		header   string
		expected string
	}{
		{"X-Frame-Options", "DENY"},
		{"X-Content-Type-Options", "nosniff"},
		{"Referrer-Policy", "no-referrer"},
		{"Content-Security-Policy", apiCSP},
		{"Cache-Control", "no-store"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, w.Header().Get(tt.header), tt.header)
	}

	assert.Empty(t, w.Header().Get("Strict-Transport-Security"), "HSTS only in production")
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	handler := SecurityHeaders(SecurityHeadersConfig{Env: "production"})(okHandler())

	t.Run("plain http", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
		assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
	})

	t.Run("forwarded https", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/health", nil)
		req.Header.Set("X-Forwarded-Proto", "https")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=31536000")
	})

	t.Run("direct tls", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/health", nil)
		req.TLS = &tls.ConnectionState{}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))
	})
}
