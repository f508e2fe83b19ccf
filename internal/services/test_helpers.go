package services

import (
	"context"
	"time"

	"github.com/BradenHooton/vigil/internal/behavior"
	"github.com/BradenHooton/vigil/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc    func(ctx context.Context, id int64) (*models.User, error)
	GetByEmailFunc func(ctx context.Context, email string) (*models.User, error)
	CreateFunc     func(ctx context.Context, user *models.User) (*models.User, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

// MockTokenIssuer implements TokenIssuer for testing
type MockTokenIssuer struct {
	GenerateAccessTokenFunc func(user *models.User) (string, error)
}

func (m *MockTokenIssuer) GenerateAccessToken(user *models.User) (string, error) {
	if m.GenerateAccessTokenFunc != nil {
		return m.GenerateAccessTokenFunc(user)
	}
	return "test-access-token", nil
}

// MockLoginRecorder implements LoginRecorder for testing
type MockLoginRecorder struct {
	RecordFunc func(ctx context.Context, userID int64, username string, req behavior.RequestContext) (*behavior.LoginTrustResult, error)
	Calls      int
}

func (m *MockLoginRecorder) RecordLoginAndRefreshBaseline(ctx context.Context, userID int64, username string, req behavior.RequestContext) (*behavior.LoginTrustResult, error) {
	m.Calls++
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, userID, username, req)
	}
	return &behavior.LoginTrustResult{EventID: 1, TrustScore: 0.95}, nil
}

// MockBaselineProvider implements BaselineProvider for testing
type MockBaselineProvider struct {
	CurrentOrRebuildFunc func(ctx context.Context, userID int64) (*models.Baseline, error)
	RebuildFunc          func(ctx context.Context, userID int64) (*models.Baseline, error)
}

func (m *MockBaselineProvider) CurrentOrRebuild(ctx context.Context, userID int64) (*models.Baseline, error) {
	if m.CurrentOrRebuildFunc != nil {
		return m.CurrentOrRebuildFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockBaselineProvider) Rebuild(ctx context.Context, userID int64) (*models.Baseline, error) {
	if m.RebuildFunc != nil {
		return m.RebuildFunc(ctx, userID)
	}
	return nil, nil
}

// MockDeviceLister implements DeviceLister for testing
type MockDeviceLister struct {
	ListForUserFunc func(ctx context.Context, userID int64) ([]models.Device, error)
}

func (m *MockDeviceLister) ListForUser(ctx context.Context, userID int64) ([]models.Device, error) {
	if m.ListForUserFunc != nil {
		return m.ListForUserFunc(ctx, userID)
	}
	return []models.Device{}, nil
}

// MockEventRecorder implements EventRecorder for testing
type MockEventRecorder struct {
	RecordEventFunc func(ctx context.Context, userID int64, username string, in behavior.EventInput) (*behavior.EventResult, error)
}

func (m *MockEventRecorder) RecordEvent(ctx context.Context, userID int64, username string, in behavior.EventInput) (*behavior.EventResult, error) {
	if m.RecordEventFunc != nil {
		return m.RecordEventFunc(ctx, userID, username, in)
	}
	return &behavior.EventResult{EventID: 1}, nil
}

// NewTestUser creates a user fixture
func NewTestUser(id int64, username, email string) *models.User {
	return &models.User{
		ID:        id,
		Username:  username,
		Email:     email,
		Role:      models.RoleUser,
		CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

// NewTestBaseline creates a baseline fixture
func NewTestBaseline(userID int64, points int) *models.Baseline {
	return &models.Baseline{
		UserID: userID,
		Profile: models.BaselineProfile{
			TypicalHours:       []int{9},
			TypicalDeviceTypes: []string{"Desktop"},
			AvgSessionDuration: models.DefaultAvgSessionDuration,
			TotalSessions:      points,
		},
		LastUpdated:     time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC),
		DataPointsCount: points,
	}
}
