package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil)), &buf
}

func TestSecureLogger_RedactsSensitiveQuery(t *testing.T) {
	logger, buf := captureLogger()

	r := chi.NewRouter()
	r.Use(SecureLogger(logger))
	r.Get("/users/{id}/devices", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/users/7/devices?token=secret-value", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http_request", entry["msg"])
	assert.Equal(t, "/users/7/devices?[REDACTED]", entry["path"])
	assert.NotContains(t, buf.String(), "secret-value")
}

func TestSecureLogger_ServerErrorsLogAtErrorLevel(t *testing.T) {
	logger, buf := captureLogger()

	handler := SecureLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/behavior/events?page=2", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "/behavior/events?page=2", entry["path"])
	assert.EqualValues(t, 503, entry["status"])
}

func TestRoutePattern(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.Get("/users/{id}/baseline", func(w http.ResponseWriter, req *http.Request) {
		got = routePattern(req)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/users/42/baseline", nil))

	assert.Equal(t, "/users/{id}/baseline", got)
	assert.Equal(t, "unmatched", routePattern(httptest.NewRequest("GET", "/nope", nil)))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(201))
	assert.Equal(t, "3xx", statusClass(304))
	assert.Equal(t, "4xx", statusClass(429))
	assert.Equal(t, "5xx", statusClass(503))
}
