package handlers_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/vigil/internal/behavior"
	"github.com/BradenHooton/vigil/internal/handlers"
	"github.com/BradenHooton/vigil/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBaseline(userID int64) *models.Baseline {
	return &models.Baseline{
		UserID: userID,
		Profile: models.BaselineProfile{
			TypicalHours:       []int{9, 10},
			TypicalDeviceTypes: []string{"Desktop"},
			AvgSessionDuration: 600,
			TotalSessions:      2,
		},
		LastUpdated:     time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC),
		DataPointsCount: 2,
		SourceLogIDs:    []int64{1, 2},
	}
}

func TestRecordEvent_Success(t *testing.T) {
	occurred := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	var captured behavior.EventInput
	var capturedUser int64

	mockTrust := &handlers.MockTrustService{
		RecordEventFunc: func(ctx context.Context, userID int64, username string, in behavior.EventInput) (*behavior.EventResult, error) {
			capturedUser = userID
			captured = in
			return &behavior.EventResult{EventID: 42}, nil
		},
	}

	handler := handlers.NewBehaviorHandler(mockTrust, nil)
	req := handlers.NewTestRequest(t, "POST", "/behavior/events", map[string]any{
		"action":           "ACCESS",
		"resource":         "/reports/q1",
		"session_duration": 120,
		"occurred_at":      occurred,
	})
	req = handlers.WithAuthContext(req, 7, "alice")

	w := httptest.NewRecorder()
	handler.RecordEvent(w, req)

	var resp behavior.EventResult
	handlers.AssertJSONResponse(t, w, 201, &resp)
	assert.Equal(t, int64(42), resp.EventID)
	assert.Equal(t, int64(7), capturedUser)
	assert.Equal(t, "ACCESS", captured.Action)
	assert.Equal(t, "/reports/q1", captured.Resource)
	assert.Equal(t, 120, captured.SessionDuration)
	assert.True(t, occurred.Equal(captured.OccurredAt))
}

func TestRecordEvent_Unauthenticated(t *testing.T) {
	handler := handlers.NewBehaviorHandler(&handlers.MockTrustService{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/behavior/events", map[string]any{"action": "ACCESS"})

	w := httptest.NewRecorder()
	handler.RecordEvent(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestRecordEvent_InvalidBody(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing action", map[string]any{"resource": "/x"}},
		{"login is not reportable", map[string]any{"action": "LOGIN"}},
		{"negative duration", map[string]any{"action": "ACCESS", "session_duration": -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := handlers.NewBehaviorHandler(&handlers.MockTrustService{}, nil)
			req := handlers.WithAuthContext(handlers.NewTestRequest(t, "POST", "/behavior/events", tt.body), 7, "alice")

			w := httptest.NewRecorder()
			handler.RecordEvent(w, req)

			handlers.AssertErrorResponse(t, w, 400, "bad_request")
		})
	}
}

func TestRecordEvent_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", fmt.Errorf("%w: occurred_at is in the future", models.ErrValidation), 400, "bad_request"},
		{"storage unavailable", fmt.Errorf("failed to append behavior event: %w", models.ErrStorageUnavailable), 503, "service_unavailable"},
		{"deadline", context.DeadlineExceeded, 503, "service_unavailable"},
		{"other", fmt.Errorf("boom"), 500, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTrust := &handlers.MockTrustService{
				RecordEventFunc: func(ctx context.Context, userID int64, username string, in behavior.EventInput) (*behavior.EventResult, error) {
					return nil, tt.err
				},
			}
			handler := handlers.NewBehaviorHandler(mockTrust, nil)
			req := handlers.WithAuthContext(handlers.NewTestRequest(t, "POST", "/behavior/events", map[string]any{"action": "logout"}), 7, "alice")

			w := httptest.NewRecorder()
			handler.RecordEvent(w, req)

			handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestGetBaseline_Self(t *testing.T) {
	mockTrust := &handlers.MockTrustService{
		GetBaselineFunc: func(ctx context.Context, userID int64) (*models.Baseline, error) {
			return testBaseline(userID), nil
		},
	}

	handler := handlers.NewBehaviorHandler(mockTrust, nil)
	req := handlers.NewTestRequest(t, "GET", "/users/7/baseline", nil)
	req = handlers.WithURLParam(handlers.WithAuthContext(req, 7, "alice"), "id", "7")

	w := httptest.NewRecorder()
	handler.GetBaseline(w, req)

	var resp models.Baseline
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, int64(7), resp.UserID)
	assert.Equal(t, []int{9, 10}, resp.Profile.TypicalHours)
	assert.Equal(t, []int64{1, 2}, resp.SourceLogIDs)
}

func TestGetBaseline_Authorization(t *testing.T) {
	mockTrust := &handlers.MockTrustService{
		GetBaselineFunc: func(ctx context.Context, userID int64) (*models.Baseline, error) {
			return testBaseline(userID), nil
		},
	}
	handler := handlers.NewBehaviorHandler(mockTrust, nil)

	t.Run("other user is forbidden", func(t *testing.T) {
		req := handlers.NewTestRequest(t, "GET", "/users/8/baseline", nil)
		req = handlers.WithURLParam(handlers.WithAuthContext(req, 7, "alice"), "id", "8")

		w := httptest.NewRecorder()
		handler.GetBaseline(w, req)

		handlers.AssertErrorResponse(t, w, 403, "forbidden")
	})

	t.Run("admin may read any user", func(t *testing.T) {
		req := handlers.NewTestRequest(t, "GET", "/users/8/baseline", nil)
		req = handlers.WithURLParam(handlers.WithAdminContext(req, 1, "root"), "id", "8")

		w := httptest.NewRecorder()
		handler.GetBaseline(w, req)

		assert.Equal(t, 200, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := handlers.NewTestRequest(t, "GET", "/users/abc/baseline", nil)
		req = handlers.WithURLParam(handlers.WithAuthContext(req, 7, "alice"), "id", "abc")

		w := httptest.NewRecorder()
		handler.GetBaseline(w, req)

		handlers.AssertErrorResponse(t, w, 400, "bad_request")
	})
}

func TestGetBaseline_NotFound(t *testing.T) {
	handler := handlers.NewBehaviorHandler(&handlers.MockTrustService{}, nil)
	req := handlers.NewTestRequest(t, "GET", "/users/7/baseline", nil)
	req = handlers.WithURLParam(handlers.WithAuthContext(req, 7, "alice"), "id", "7")

	w := httptest.NewRecorder()
	handler.GetBaseline(w, req)

	handlers.AssertErrorResponse(t, w, 404, "not_found")
}

func TestRebuildBaseline_PassesActor(t *testing.T) {
	var gotUser, gotActor int64
	mockTrust := &handlers.MockTrustService{
		RebuildBaselineFunc: func(ctx context.Context, userID, actorID int64) (*models.Baseline, error) {
			gotUser, gotActor = userID, actorID
			return testBaseline(userID), nil
		},
	}

	handler := handlers.NewBehaviorHandler(mockTrust, nil)
	req := handlers.NewTestRequest(t, "POST", "/users/9/baseline/rebuild", nil)
	req = handlers.WithURLParam(handlers.WithAdminContext(req, 1, "root"), "id", "9")

	w := httptest.NewRecorder()
	handler.RebuildBaseline(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, int64(9), gotUser)
	assert.Equal(t, int64(1), gotActor)
}

func TestListDevices(t *testing.T) {
	seen := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)
	mockTrust := &handlers.MockTrustService{
		ListDevicesFunc: func(ctx context.Context, userID int64) ([]models.Device, error) {
			return []models.Device{{
				UserID:            userID,
				DeviceFingerprint: "abc123",
				DeviceType:        "Desktop",
				TrustScore:        0.95,
				LastSeen:          seen,
			}}, nil
		},
	}

	handler := handlers.NewBehaviorHandler(mockTrust, nil)
	req := handlers.NewTestRequest(t, "GET", "/users/7/devices", nil)
	req = handlers.WithURLParam(handlers.WithAuthContext(req, 7, "alice"), "id", "7")

	w := httptest.NewRecorder()
	handler.ListDevices(w, req)

	var resp handlers.DevicesResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	require.Len(t, resp.Devices, 1)
	assert.Equal(t, "abc123", resp.Devices[0].DeviceFingerprint)
}

func TestListDevices_EmptyIsArray(t *testing.T) {
	handler := handlers.NewBehaviorHandler(&handlers.MockTrustService{}, nil)
	req := handlers.NewTestRequest(t, "GET", "/users/7/devices", nil)
	req = handlers.WithURLParam(handlers.WithAuthContext(req, 7, "alice"), "id", "7")

	w := httptest.NewRecorder()
	handler.ListDevices(w, req)

	assert.Equal(t, 200, w.Code)
	assert.JSONEq(t, `{"devices":[]}`, w.Body.String())
}
