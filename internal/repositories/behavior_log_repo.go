package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/vigil/internal/database"
	"github.com/BradenHooton/vigil/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BehaviorLogRepository is the append-only store of behavior events
type BehaviorLogRepository struct {
	pool *pgxpool.Pool
}

func NewBehaviorLogRepository(db *database.DB) *BehaviorLogRepository {
	return &BehaviorLogRepository{pool: db.Pool}
}

const behaviorLogColumns = `id, user_id, username, timestamp, hour, day_of_week,
	ip_address, ip_prefix, location_country, location_city,
	device_fingerprint, device_type, os, browser,
	resource, action, session_id, session_duration,
	vpn_detected, proxy_detected`

// Append stores the event and returns its id. Ids increase with insertion order.
func (r *BehaviorLogRepository) Append(ctx context.Context, e *models.BehaviorEvent) (int64, error) {
	query := `
		INSERT INTO behavior_logs (
			user_id, username, timestamp, hour, day_of_week,
			ip_address, ip_prefix, location_country, location_city,
			device_fingerprint, device_type, os, browser,
			resource, action, session_id, session_duration,
			vpn_detected, proxy_detected
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id
	`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		e.UserID, e.Username, e.Timestamp, e.Hour, e.DayOfWeek,
		nullable(e.IPAddress), nullable(e.IPPrefix), nullable(e.LocationCountry), nullable(e.LocationCity),
		nullable(e.DeviceFingerprint), nullable(e.DeviceType), nullable(e.OS), nullable(e.Browser),
		nullable(e.Resource), nullable(e.Action), nullable(e.SessionID), e.SessionDuration,
		e.VPNDetected, e.ProxyDetected,
	).Scan(&id)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return id, nil
}

// RecentForUser returns the user's newest limit events in ascending id order
func (r *BehaviorLogRepository) RecentForUser(ctx context.Context, userID int64, limit int) ([]models.BehaviorEvent, error) {
	query := `
		SELECT ` + behaviorLogColumns + ` FROM (
			SELECT ` + behaviorLogColumns + ` FROM behavior_logs
			WHERE user_id = $1
			ORDER BY id DESC
			LIMIT $2
		) recent
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query behavior logs: %w", database.MapPostgresError(err))
	}

	return scanBehaviorLogRows(rows)
}

// StaleBaselineUsers lists users whose stored baseline no longer matches the
// newest window of their events, or who have events and no baseline.
//
// Staleness is decided by event id, never by timestamp: a baseline is current
// only if no event has a higher id than its newest window entry, the id range
// of its window holds exactly its data points, and a window shorter than the
// configured size has no older events beneath it. The last two catch events
// whose insert committed after a rebuild that skipped them.
func (r *BehaviorLogRepository) StaleBaselineUsers(ctx context.Context, window, limit int) ([]int64, error) {
	query := `
		SELECT l.user_id
		FROM behavior_logs l
		LEFT JOIN user_baselines b ON b.user_id = l.user_id
		GROUP BY l.user_id, b.user_id, b.first_log_id, b.last_log_id, b.data_points_count
		HAVING b.user_id IS NULL
			OR MAX(l.id) > b.last_log_id
			OR COUNT(*) FILTER (WHERE l.id >= b.first_log_id) <> b.data_points_count
			OR (b.data_points_count < $1 AND MIN(l.id) < b.first_log_id)
		ORDER BY l.user_id
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, window, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale baselines: %w", database.MapPostgresError(err))
	}

	userIDs, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return userIDs, nil
}

func scanBehaviorLogRows(rows pgx.Rows) ([]models.BehaviorEvent, error) {
	defer rows.Close()

	events := make([]models.BehaviorEvent, 0)

	for rows.Next() {
		var (
			e                                  models.BehaviorEvent
			ip, prefix, country, city          *string
			fingerprint, deviceType, os, brows *string
			resource, action, sessionID        *string
		)

		err := rows.Scan(
			&e.ID, &e.UserID, &e.Username, &e.Timestamp, &e.Hour, &e.DayOfWeek,
			&ip, &prefix, &country, &city,
			&fingerprint, &deviceType, &os, &brows,
			&resource, &action, &sessionID, &e.SessionDuration,
			&e.VPNDetected, &e.ProxyDetected,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan behavior log: %w", database.MapPostgresError(err))
		}

		e.Timestamp = e.Timestamp.UTC()
		e.IPAddress, e.IPPrefix = deref(ip), deref(prefix)
		e.LocationCountry, e.LocationCity = deref(country), deref(city)
		e.DeviceFingerprint, e.DeviceType = deref(fingerprint), deref(deviceType)
		e.OS, e.Browser = deref(os), deref(brows)
		e.Resource, e.Action, e.SessionID = deref(resource), deref(action), deref(sessionID)

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", database.MapPostgresError(err))
	}

	return events, nil
}

// nullable maps an empty string to SQL NULL
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
