package services

import (
	"context"
	"log/slog"

	"github.com/BradenHooton/vigil/internal/behavior"
	"github.com/BradenHooton/vigil/internal/models"
	pkglogger "github.com/BradenHooton/vigil/pkg/logger"
)

// BaselineProvider reads and rebuilds per-user baselines
type BaselineProvider interface {
	CurrentOrRebuild(ctx context.Context, userID int64) (*models.Baseline, error)
	Rebuild(ctx context.Context, userID int64) (*models.Baseline, error)
}

// DeviceLister lists a user's known devices
type DeviceLister interface {
	ListForUser(ctx context.Context, userID int64) ([]models.Device, error)
}

// EventRecorder records client-reported behavior events
type EventRecorder interface {
	RecordEvent(ctx context.Context, userID int64, username string, in behavior.EventInput) (*behavior.EventResult, error)
}

// TrustService exposes the trust engine's read and maintenance operations
type TrustService struct {
	baselines   BaselineProvider
	devices     DeviceLister
	events      EventRecorder
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewTrustService creates a new TrustService
func NewTrustService(baselines BaselineProvider, devices DeviceLister, events EventRecorder, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *TrustService {
	return &TrustService{
		baselines:   baselines,
		devices:     devices,
		events:      events,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// GetBaseline returns the user's baseline, rebuilding it when the stored one
// is missing or unreadable. A user without events has none: ErrNotFound.
func (s *TrustService) GetBaseline(ctx context.Context, userID int64) (*models.Baseline, error) {
	baseline, err := s.baselines.CurrentOrRebuild(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load baseline", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, err
	}
	if baseline == nil {
		return nil, models.ErrNotFound
	}
	return baseline, nil
}

// RebuildBaseline forces a rebuild on behalf of actorID
func (s *TrustService) RebuildBaseline(ctx context.Context, userID, actorID int64) (*models.Baseline, error) {
	baseline, err := s.baselines.Rebuild(ctx, userID)
	if err != nil {
		s.logger.Error("forced baseline rebuild failed", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, err
	}
	if baseline == nil {
		return nil, models.ErrNotFound
	}

	s.auditLogger.LogAccountAction("baseline_rebuilt", userID, actorID, nil)
	return baseline, nil
}

// ListDevices returns the devices the user has signed in from
func (s *TrustService) ListDevices(ctx context.Context, userID int64) ([]models.Device, error) {
	devices, err := s.devices.ListForUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list devices", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, err
	}
	return devices, nil
}

// RecordEvent records a client-reported event for the authenticated user
func (s *TrustService) RecordEvent(ctx context.Context, userID int64, username string, in behavior.EventInput) (*behavior.EventResult, error) {
	result, err := s.events.RecordEvent(ctx, userID, username, in)
	if err != nil && result == nil {
		s.logger.Warn("failed to record behavior event",
			slog.Int64("user_id", userID),
			slog.String("action", in.Action),
			slog.Any("error", err))
		return nil, err
	}
	if err != nil {
		// Stored, but the baseline refresh was skipped
		s.logger.Warn("baseline refresh skipped", slog.Int64("user_id", userID), slog.Any("error", err))
	}
	return result, nil
}
