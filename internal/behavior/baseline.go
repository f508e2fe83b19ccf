package behavior

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/vigil/internal/models"
)

// EventStore is the append-only persistence of behavior events
type EventStore interface {
	Append(ctx context.Context, event *models.BehaviorEvent) (int64, error)
	// RecentForUser returns at most limit of the user's newest events, oldest first
	RecentForUser(ctx context.Context, userID int64, limit int) ([]models.BehaviorEvent, error)
}

// BaselineStore persists one baseline per user with overwrite semantics
type BaselineStore interface {
	Upsert(ctx context.Context, baseline *models.Baseline) error
	Get(ctx context.Context, userID int64) (*models.Baseline, error)
}

// BuilderConfig bounds the window and the sampled fields of a baseline
type BuilderConfig struct {
	Window         int
	HoursSample    int
	IPPrefixSample int
	SourceIDSample int
}

// DefaultBuilderConfig is the "last 30 logins" policy
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		Window:         30,
		HoursSample:    10,
		IPPrefixSample: 5,
		SourceIDSample: 10,
	}
}

// Builder recomputes per-user baselines from the recent event window
type Builder struct {
	events    EventStore
	baselines BaselineStore
	locker    Locker
	cfg       BuilderConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewBuilder creates a Builder. A nil locker falls back to an in-process KeyedMutex.
func NewBuilder(events EventStore, baselines BaselineStore, locker Locker, cfg BuilderConfig, logger *slog.Logger) *Builder {
	if locker == nil {
		locker = NewKeyedMutex()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		events:    events,
		baselines: baselines,
		locker:    locker,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Rebuild recomputes and stores the user's baseline. It returns nil, nil when
// the user has no events; nothing is written in that case.
//
// The per-user lock is held from the window read through the upsert, so two
// concurrent rebuilds cannot interleave and leave an older window stored last.
func (b *Builder) Rebuild(ctx context.Context, userID int64) (*models.Baseline, error) {
	start := time.Now()

	unlock, err := b.locker.Lock(ctx, userID)
	if err != nil {
		baselineRebuilds.WithLabelValues(outcomeError).Inc()
		return nil, fmt.Errorf("failed to acquire baseline lock: %w", err)
	}
	defer unlock()

	events, err := b.events.RecentForUser(ctx, userID, b.cfg.Window)
	if err != nil {
		baselineRebuilds.WithLabelValues(outcomeError).Inc()
		return nil, fmt.Errorf("failed to load recent events: %w", err)
	}

	baseline := Compute(userID, events, b.cfg, b.now())
	if baseline == nil {
		baselineRebuilds.WithLabelValues(outcomeEmpty).Inc()
		return nil, nil
	}

	if err := b.baselines.Upsert(ctx, baseline); err != nil {
		baselineRebuilds.WithLabelValues(outcomeError).Inc()
		return nil, fmt.Errorf("failed to store baseline: %w", err)
	}

	baselineRebuilds.WithLabelValues(outcomeSuccess).Inc()
	baselineRebuildDuration.Observe(time.Since(start).Seconds())

	b.logger.Debug("baseline rebuilt",
		slog.Int64("user_id", userID),
		slog.Int("data_points", baseline.DataPointsCount))

	return baseline, nil
}

// Current returns the stored baseline, or nil when none exists or the stored
// document cannot be decoded. A malformed document is left for the next
// rebuild to overwrite.
func (b *Builder) Current(ctx context.Context, userID int64) (*models.Baseline, error) {
	baseline, err := b.baselines.Get(ctx, userID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return nil, nil
	case errors.Is(err, models.ErrMalformedBaseline):
		b.logger.Warn("ignoring malformed baseline",
			slog.Int64("user_id", userID),
			slog.Any("error", err))
		return nil, nil
	case err != nil:
		return nil, err
	}
	return baseline, nil
}

// CurrentOrRebuild returns the stored baseline, rebuilding it first when it
// is missing or unreadable
func (b *Builder) CurrentOrRebuild(ctx context.Context, userID int64) (*models.Baseline, error) {
	baseline, err := b.Current(ctx, userID)
	if err != nil || baseline != nil {
		return baseline, err
	}
	return b.Rebuild(ctx, userID)
}

// Compute aggregates a window of events (oldest first) into a baseline.
// Sampled fields keep window order; set fields are deduplicated in first-seen
// order and skip empty (NULL) values. Unknown is a real observation and is kept.
func Compute(userID int64, events []models.BehaviorEvent, cfg BuilderConfig, now time.Time) *models.Baseline {
	if len(events) == 0 {
		return nil
	}

	var (
		hours       = make([]int, 0, min(len(events), cfg.HoursSample))
		sourceIDs   = make([]int64, 0, min(len(events), cfg.SourceIDSample))
		prefixes    = newDistinct(cfg.IPPrefixSample)
		cities      = newDistinct(0)
		countries   = newDistinct(0)
		deviceTypes = newDistinct(0)
		osList      = newDistinct(0)
		browsers    = newDistinct(0)
		resources   = newDistinct(0)
		durations   int
	)

	for i, e := range events {
		if i < cfg.HoursSample {
			hours = append(hours, e.Hour)
		}
		if i < cfg.SourceIDSample {
			sourceIDs = append(sourceIDs, e.ID)
		}
		prefixes.add(e.IPPrefix)
		cities.add(e.LocationCity)
		countries.add(e.LocationCountry)
		deviceTypes.add(e.DeviceType)
		osList.add(e.OS)
		browsers.add(e.Browser)
		resources.add(e.Resource)
		durations += e.SessionDuration
	}

	avg := models.DefaultAvgSessionDuration
	if len(events) > 0 {
		avg = durations / len(events)
	}

	return &models.Baseline{
		UserID: userID,
		Profile: models.BaselineProfile{
			TypicalHours:       hours,
			TypicalIPPrefixes:  prefixes.values,
			TypicalCities:      cities.values,
			TypicalCountries:   countries.values,
			TypicalDeviceTypes: deviceTypes.values,
			TypicalOS:          osList.values,
			TypicalBrowsers:    browsers.values,
			TypicalResources:   resources.values,
			AvgSessionDuration: avg,
			TotalSessions:      len(events),
		},
		LastUpdated:     now.UTC(),
		DataPointsCount: len(events),
		SourceLogIDs:    sourceIDs,
		FirstLogID:      events[0].ID,
		LastLogID:       events[len(events)-1].ID,
	}
}

// distinct collects unique non-empty values in first-seen order, optionally capped
type distinct struct {
	limit  int
	seen   map[string]struct{}
	values []string
}

func newDistinct(limit int) *distinct {
	return &distinct{
		limit:  limit,
		seen:   make(map[string]struct{}),
		values: []string{},
	}
}

func (d *distinct) add(v string) {
	if v == "" {
		return
	}
	if d.limit > 0 && len(d.values) >= d.limit {
		return
	}
	if _, ok := d.seen[v]; ok {
		return
	}
	d.seen[v] = struct{}{}
	d.values = append(d.values, v)
}
