package repositories

import (
	"bytes"
	"context"
	"fmt"

	"github.com/BradenHooton/vigil/internal/database"
	"github.com/BradenHooton/vigil/internal/models"
	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BaselineRepository stores one baseline per user
type BaselineRepository struct {
	pool *pgxpool.Pool
}

func NewBaselineRepository(db *database.DB) *BaselineRepository {
	return &BaselineRepository{pool: db.Pool}
}

// Upsert writes the baseline, replacing any previous one for the user
func (r *BaselineRepository) Upsert(ctx context.Context, b *models.Baseline) error {
	profile, err := json.Marshal(b.Profile)
	if err != nil {
		return fmt.Errorf("failed to encode baseline: %w", err)
	}

	sourceIDs := b.SourceLogIDs
	if sourceIDs == nil {
		sourceIDs = []int64{}
	}
	ids, err := json.Marshal(sourceIDs)
	if err != nil {
		return fmt.Errorf("failed to encode source log ids: %w", err)
	}

	query := `
		INSERT INTO user_baselines (
			user_id, baseline_data, last_updated, data_points_count, source_log_ids,
			first_log_id, last_log_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			baseline_data = EXCLUDED.baseline_data,
			last_updated = EXCLUDED.last_updated,
			data_points_count = EXCLUDED.data_points_count,
			source_log_ids = EXCLUDED.source_log_ids,
			first_log_id = EXCLUDED.first_log_id,
			last_log_id = EXCLUDED.last_log_id
	`

	_, err = r.pool.Exec(ctx, query, b.UserID, string(profile), b.LastUpdated, b.DataPointsCount, string(ids),
		b.FirstLogID, b.LastLogID)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// Get returns the user's baseline. A stored document that does not decode
// into the typed profile yields ErrMalformedBaseline.
func (r *BaselineRepository) Get(ctx context.Context, userID int64) (*models.Baseline, error) {
	query := `
		SELECT user_id, baseline_data, last_updated, data_points_count, source_log_ids,
			first_log_id, last_log_id
		FROM user_baselines WHERE user_id = $1
	`

	var (
		b                models.Baseline
		profile, idsJSON []byte
	)
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&b.UserID, &profile, &b.LastUpdated, &b.DataPointsCount, &idsJSON,
		&b.FirstLogID, &b.LastLogID,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if err := decodeStrict(profile, &b.Profile); err != nil {
		return nil, fmt.Errorf("%w: baseline_data: %v", models.ErrMalformedBaseline, err)
	}
	if err := decodeStrict(idsJSON, &b.SourceLogIDs); err != nil {
		return nil, fmt.Errorf("%w: source_log_ids: %v", models.ErrMalformedBaseline, err)
	}
	b.LastUpdated = b.LastUpdated.UTC()

	return &b, nil
}

func decodeStrict(raw []byte, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("empty document")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
