package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/vigil/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Minute)
	token, err := tm.GenerateAccessToken(testUser())
	require.NoError(t, err)

	var seen *models.TokenClaims
	handler := AuthMiddleware(tm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserFromContext(r)
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, int64(42), seen.UserID)
			} else {
				assert.Nil(t, seen)
				assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Minute)
	admin := testUser()
	admin.Role = models.RoleAdmin

	userToken, err := tm.GenerateAccessToken(testUser())
	require.NoError(t, err)
	adminToken, err := tm.GenerateAccessToken(admin)
	require.NoError(t, err)

	handler := AuthMiddleware(tm)(RequireRole(models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	for token, want := range map[string]int{userToken: http.StatusForbidden, adminToken: http.StatusNoContent} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, want, rec.Code)
	}
}

func TestCanAccessUser(t *testing.T) {
	assert.True(t, CanAccessUser(&models.TokenClaims{UserID: 7}, 7))
	assert.False(t, CanAccessUser(&models.TokenClaims{UserID: 7}, 8))
	assert.True(t, CanAccessUser(&models.TokenClaims{UserID: 1, Role: models.RoleAdmin}, 8))
	assert.False(t, CanAccessUser(nil, 8))
}
