package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/vigil/internal/auth"
	"github.com/BradenHooton/vigil/internal/behavior"
	"github.com/BradenHooton/vigil/internal/models"
	"github.com/BradenHooton/vigil/internal/services"
	pkghttp "github.com/BradenHooton/vigil/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds user claims to request context for testing authenticated endpoints
func WithAuthContext(req *http.Request, userID int64, username string) *http.Request {
	return withClaims(req, userID, username, models.RoleUser)
}

// WithAdminContext adds admin user claims to request context
func WithAdminContext(req *http.Request, userID int64, username string) *http.Request {
	return withClaims(req, userID, username, models.RoleAdmin)
}

func withClaims(req *http.Request, userID int64, username, role string) *http.Request {
	claims := &models.TokenClaims{
		Type:     auth.TokenTypeAccess,
		UserID:   userID,
		Username: username,
		Role:     role,
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// WithURLParam sets a chi route parameter on the request
func WithURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc    func(ctx context.Context, email, password string, req behavior.RequestContext) (*services.AuthResponse, error)
	RegisterFunc func(ctx context.Context, username, email, password string) (*services.UserResponse, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string, req behavior.RequestContext) (*services.AuthResponse, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, email, password, req)
}

func (m *MockAuthService) Register(ctx context.Context, username, email, password string) (*services.UserResponse, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, username, email, password)
}

// MockTrustService implements TrustServiceInterface for testing
type MockTrustService struct {
	GetBaselineFunc     func(ctx context.Context, userID int64) (*models.Baseline, error)
	RebuildBaselineFunc func(ctx context.Context, userID, actorID int64) (*models.Baseline, error)
	ListDevicesFunc     func(ctx context.Context, userID int64) ([]models.Device, error)
	RecordEventFunc     func(ctx context.Context, userID int64, username string, in behavior.EventInput) (*behavior.EventResult, error)
}

func (m *MockTrustService) GetBaseline(ctx context.Context, userID int64) (*models.Baseline, error) {
	if m.GetBaselineFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetBaselineFunc(ctx, userID)
}

func (m *MockTrustService) RebuildBaseline(ctx context.Context, userID, actorID int64) (*models.Baseline, error) {
	if m.RebuildBaselineFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.RebuildBaselineFunc(ctx, userID, actorID)
}

func (m *MockTrustService) ListDevices(ctx context.Context, userID int64) ([]models.Device, error) {
	if m.ListDevicesFunc == nil {
		return nil, nil
	}
	return m.ListDevicesFunc(ctx, userID)
}

func (m *MockTrustService) RecordEvent(ctx context.Context, userID int64, username string, in behavior.EventInput) (*behavior.EventResult, error) {
	if m.RecordEventFunc == nil {
		return &behavior.EventResult{EventID: 1}, nil
	}
	return m.RecordEventFunc(ctx, userID, username, in)
}
