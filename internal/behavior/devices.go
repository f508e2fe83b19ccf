package behavior

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/vigil/internal/models"
)

// DeviceStore persists devices keyed by (user id, fingerprint)
type DeviceStore interface {
	Upsert(ctx context.Context, device *models.Device) error
	ListForUser(ctx context.Context, userID int64) ([]models.Device, error)
}

// DeviceRegistry validates and records the devices a user signs in from
type DeviceRegistry struct {
	store DeviceStore
}

// NewDeviceRegistry creates a DeviceRegistry
func NewDeviceRegistry(store DeviceStore) *DeviceRegistry {
	return &DeviceRegistry{store: store}
}

// Upsert inserts the device or replaces every attribute of the existing record
func (r *DeviceRegistry) Upsert(ctx context.Context, userID int64, fingerprint, deviceType, os, browser string, trustScore float64, seenAt time.Time) error {
	fingerprint = strings.TrimSpace(fingerprint)
	switch {
	case userID <= 0:
		return fmt.Errorf("%w: user id is required", models.ErrValidation)
	case fingerprint == "":
		return fmt.Errorf("%w: device fingerprint is required", models.ErrValidation)
	case trustScore < 0 || trustScore > 1:
		return fmt.Errorf("%w: trust score %v outside [0, 1]", models.ErrValidation, trustScore)
	}

	return r.store.Upsert(ctx, &models.Device{
		UserID:            userID,
		DeviceFingerprint: fingerprint,
		DeviceType:        deviceType,
		OS:                os,
		Browser:           browser,
		TrustScore:        trustScore,
		LastSeen:          seenAt.UTC(),
	})
}

// ListForUser returns the user's devices, most recently seen first
func (r *DeviceRegistry) ListForUser(ctx context.Context, userID int64) ([]models.Device, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id is required", models.ErrValidation)
	}
	return r.store.ListForUser(ctx, userID)
}
