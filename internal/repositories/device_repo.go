package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/vigil/internal/database"
	"github.com/BradenHooton/vigil/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DeviceRepository stores one row per (user, device fingerprint)
type DeviceRepository struct {
	pool *pgxpool.Pool
}

func NewDeviceRepository(db *database.DB) *DeviceRepository {
	return &DeviceRepository{pool: db.Pool}
}

// Upsert inserts the device or overwrites every attribute of the existing row
func (r *DeviceRepository) Upsert(ctx context.Context, d *models.Device) error {
	query := `
		INSERT INTO devices (user_id, device_fingerprint, device_type, os, browser, trust_score, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, device_fingerprint) DO UPDATE SET
			device_type = EXCLUDED.device_type,
			os = EXCLUDED.os,
			browser = EXCLUDED.browser,
			trust_score = EXCLUDED.trust_score,
			last_seen = EXCLUDED.last_seen
	`

	_, err := r.pool.Exec(ctx, query,
		d.UserID, d.DeviceFingerprint,
		nullable(d.DeviceType), nullable(d.OS), nullable(d.Browser),
		d.TrustScore, d.LastSeen,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// ListForUser returns the user's devices, most recently seen first
func (r *DeviceRepository) ListForUser(ctx context.Context, userID int64) ([]models.Device, error) {
	query := `
		SELECT user_id, device_fingerprint, device_type, os, browser, trust_score, last_seen
		FROM devices WHERE user_id = $1
		ORDER BY last_seen DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", database.MapPostgresError(err))
	}
	defer rows.Close()

	devices := make([]models.Device, 0)
	for rows.Next() {
		var (
			d                       models.Device
			deviceType, os, browser *string
		)
		if err := rows.Scan(&d.UserID, &d.DeviceFingerprint, &deviceType, &os, &browser, &d.TrustScore, &d.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", database.MapPostgresError(err))
		}
		d.DeviceType, d.OS, d.Browser = deref(deviceType), deref(os), deref(browser)
		d.LastSeen = d.LastSeen.UTC()
		devices = append(devices, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", database.MapPostgresError(err))
	}

	return devices, nil
}
