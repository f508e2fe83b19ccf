package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/vigil/internal/behavior"
	"github.com/BradenHooton/vigil/internal/models"
	pkgauth "github.com/BradenHooton/vigil/pkg/auth"
	pkglogger "github.com/BradenHooton/vigil/pkg/logger"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hashedPassword, password string) error
	CompareDummy(password string)
}

// TokenIssuer issues access tokens
type TokenIssuer interface {
	GenerateAccessToken(user *models.User) (string, error)
}

// LoginRecorder feeds successful logins to the trust engine
type LoginRecorder interface {
	RecordLoginAndRefreshBaseline(ctx context.Context, userID int64, username string, req behavior.RequestContext) (*behavior.LoginTrustResult, error)
}

// AuthService handles authentication business logic
type AuthService struct {
	repo        UserRepository
	hasher      PasswordHasher
	tm          TokenIssuer
	trust       LoginRecorder
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService. trust may be nil to disable behavior recording.
func NewAuthService(repo UserRepository, hasher PasswordHasher, tm TokenIssuer, trust LoginRecorder, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		repo:        repo,
		hasher:      hasher,
		tm:          tm,
		trust:       trust,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// AuthResponse represents the response from a login
type AuthResponse struct {
	AccessToken string                     `json:"access_token"`
	TokenType   string                     `json:"token_type"`
	User        *UserResponse              `json:"user"`
	Trust       *behavior.LoginTrustResult `json:"trust,omitempty"`
}

// Login verifies credentials, issues an access token and records the login
// with the trust engine. Trust engine failures never fail the login.
func (s *AuthService) Login(ctx context.Context, email, password string, req behavior.RequestContext) (*AuthResponse, error) {
	if email = strings.ToLower(strings.TrimSpace(email)); email == "" {
		s.logger.Warn("login attempt with empty email")
		return nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.hasher.CompareDummy(password)
			s.logger.Info("login failed: invalid credentials")
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				IPAddress:     req.ClientIP,
				FailureReason: "invalid_credentials",
				Success:       false,
			})
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.logger.Info("login failed: invalid credentials", slog.Int64("user_id", user.ID))
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     req.ClientIP,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		return nil, models.ErrUnauthorized
	}

	accessToken, err := s.tm.GenerateAccessToken(user)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.Int64("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: req.ClientIP,
		UserAgent: req.UserAgent,
		Success:   true,
	})

	return &AuthResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		User:        userModelToResponse(user),
		Trust:       s.recordLogin(ctx, user, req),
	}, nil
}

// recordLogin runs the trust engine and swallows its errors after logging them
func (s *AuthService) recordLogin(ctx context.Context, user *models.User, req behavior.RequestContext) *behavior.LoginTrustResult {
	if s.trust == nil {
		return nil
	}

	result, err := s.trust.RecordLoginAndRefreshBaseline(ctx, user.ID, user.Username, req)
	if err != nil {
		s.logger.Warn("trust engine degraded during login",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err))
	}
	if result == nil {
		return nil
	}

	eval := pkglogger.TrustEvaluation{
		UserID:     user.ID,
		EventID:    result.EventID,
		TrustScore: result.TrustScore,
		IPPrefix:   behavior.IPPrefix(req.ClientIP),
	}
	if result.Baseline != nil {
		eval.BaselinePoints = result.Baseline.DataPointsCount
	}
	s.auditLogger.LogTrustEvaluation(eval)

	return result
}

// Register creates a new user account
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*UserResponse, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" {
		return nil, fmt.Errorf("%w: username is required", models.ErrBadRequest)
	}
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", models.ErrBadRequest)
	}
	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, err
	}

	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		s.logger.Info("registration failed: user already exists")
		return nil, models.ErrConflict
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check if user exists", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hashedPassword, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	createdUser, err := s.repo.Create(ctx, &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         models.RoleUser,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user registered", slog.Int64("user_id", createdUser.ID))
	s.auditLogger.LogAccountAction("user_registered", createdUser.ID, 0, map[string]string{
		"email": pkglogger.SanitizedEmail(createdUser.Email),
	})

	return userModelToResponse(createdUser), nil
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
	}
}
