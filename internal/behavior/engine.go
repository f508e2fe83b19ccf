package behavior

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/vigil/internal/models"
	"github.com/sony/gobreaker/v2"
)

// maxClockSkew is how far ahead of the server clock a client-reported event may be
const maxClockSkew = 5 * time.Minute

// EngineConfig tunes the storage guards around the trust pipeline
type EngineConfig struct {
	StorageTimeout     time.Duration
	BreakerFailures    uint32
	BreakerOpenTimeout time.Duration
}

// BaselineSummary is the part of a refreshed baseline reported back to the login flow
type BaselineSummary struct {
	DataPointsCount    int       `json:"data_points_count"`
	LastUpdated        time.Time `json:"last_updated"`
	TypicalHours       []int     `json:"typical_hours"`
	TypicalDeviceTypes []string  `json:"typical_device_types"`
	TypicalCountries   []string  `json:"typical_countries"`
	AvgSessionDuration int       `json:"avg_session_duration"`
}

// LoginTrustResult is what the login flow gets back for a recorded login
type LoginTrustResult struct {
	EventID    int64            `json:"event_id"`
	TrustScore float64          `json:"trust_score"`
	Baseline   *BaselineSummary `json:"baseline,omitempty"`
}

// EventInput describes a non-login event reported by an authenticated client
type EventInput struct {
	Request         RequestContext
	Action          string
	Resource        string
	SessionID       string
	SessionDuration int
	OccurredAt      time.Time
}

// EventResult is returned for a recorded non-login event
type EventResult struct {
	EventID  int64            `json:"event_id"`
	Baseline *BaselineSummary `json:"baseline,omitempty"`
}

// Engine runs the collect, score, append, register, rebuild pipeline
type Engine struct {
	collector *Collector
	events    EventStore
	builder   *Builder
	scorer    Scorer
	devices   *DeviceRegistry
	breaker   *gobreaker.CircuitBreaker[any]
	timeout   time.Duration
	logger    *slog.Logger
}

// NewEngine creates an Engine
func NewEngine(
	collector *Collector,
	events EventStore,
	builder *Builder,
	scorer Scorer,
	devices *DeviceRegistry,
	cfg EngineConfig,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if scorer == nil {
		scorer = HeuristicScorer{}
	}
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = 3 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerOpenTimeout <= 0 {
		cfg.BreakerOpenTimeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "trust-storage",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("trust storage breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			breakerTransitions.WithLabelValues(from.String(), to.String()).Inc()
		},
		// Only storage outages trip the breaker; bad input does not
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, models.ErrStorageUnavailable)
		},
	})

	return &Engine{
		collector: collector,
		events:    events,
		builder:   builder,
		scorer:    scorer,
		devices:   devices,
		breaker:   breaker,
		timeout:   cfg.StorageTimeout,
		logger:    logger,
	}
}

// RecordLoginAndRefreshBaseline records a successful login, scores it against
// the user's current baseline and refreshes the baseline.
//
// If the event was stored but the rebuild failed, the result is returned
// together with the error. Callers on the login path must not fail the login
// because of an error from here.
func (e *Engine) RecordLoginAndRefreshBaseline(ctx context.Context, userID int64, username string, req RequestContext) (*LoginTrustResult, error) {
	event, err := e.collector.Collect(ctx, req, userID, username)
	if err != nil {
		eventsRecorded.WithLabelValues(models.ActionLogin, outcomeError).Inc()
		return nil, err
	}

	res, err := e.execute(func() (any, error) {
		return e.recordLogin(ctx, event)
	})
	result, _ := res.(*LoginTrustResult)
	e.observe(models.ActionLogin, err)
	return result, err
}

func (e *Engine) recordLogin(ctx context.Context, event *models.BehaviorEvent) (*LoginTrustResult, error) {
	baseline, err := e.currentBaseline(ctx, event.UserID)
	if err != nil {
		// Score on the event alone rather than drop the login
		e.logger.Warn("scoring without baseline",
			slog.Int64("user_id", event.UserID),
			slog.Any("error", err))
	}

	score := e.scorer.Score(event, baseline)
	trustScores.Observe(score)

	if err := e.appendEvent(ctx, event); err != nil {
		return nil, err
	}

	result := &LoginTrustResult{EventID: event.ID, TrustScore: score}

	if event.DeviceFingerprint != "" {
		if err := e.upsertDevice(ctx, event, score); err != nil {
			e.logger.Warn("failed to record device",
				slog.Int64("user_id", event.UserID),
				slog.Any("error", err))
		}
	}

	summary, err := e.rebuild(ctx, event.UserID)
	result.Baseline = summary
	return result, err
}

// RecordEvent records a resource access or logout reported by the user's
// client and refreshes the baseline
func (e *Engine) RecordEvent(ctx context.Context, userID int64, username string, in EventInput) (*EventResult, error) {
	action := strings.ToUpper(strings.TrimSpace(in.Action))
	if action == "" {
		return nil, fmt.Errorf("%w: action is required", models.ErrValidation)
	}
	if in.SessionDuration < 0 {
		return nil, fmt.Errorf("%w: session duration must not be negative", models.ErrValidation)
	}

	now := e.collector.now()
	at := in.OccurredAt
	if at.IsZero() {
		at = now
	}
	if at.After(now.Add(maxClockSkew)) {
		return nil, fmt.Errorf("%w: occurred_at is in the future", models.ErrValidation)
	}

	event, err := e.collector.CollectAt(ctx, in.Request, userID, username, at)
	if err != nil {
		eventsRecorded.WithLabelValues(action, outcomeError).Inc()
		return nil, err
	}
	event.Action = action
	event.SessionDuration = in.SessionDuration
	if r := strings.TrimSpace(in.Resource); r != "" {
		event.Resource = r
	}
	if s := strings.TrimSpace(in.SessionID); s != "" {
		event.SessionID = s
	}

	res, err := e.execute(func() (any, error) {
		if err := e.appendEvent(ctx, event); err != nil {
			return nil, err
		}
		summary, err := e.rebuild(ctx, userID)
		return &EventResult{EventID: event.ID, Baseline: summary}, err
	})
	result, _ := res.(*EventResult)
	e.observe(action, err)
	return result, err
}

// BreakerState reports the storage breaker state for health checks
func (e *Engine) BreakerState() string {
	return e.breaker.State().String()
}

func (e *Engine) execute(fn func() (any, error)) (any, error) {
	res, err := e.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	return res, err
}

func (e *Engine) observe(action string, err error) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeError
	}
	eventsRecorded.WithLabelValues(action, outcome).Inc()
}

func (e *Engine) currentBaseline(ctx context.Context, userID int64) (*models.Baseline, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.builder.Current(ctx, userID)
}

func (e *Engine) appendEvent(ctx context.Context, event *models.BehaviorEvent) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	id, err := e.events.Append(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to append behavior event: %w", err)
	}
	event.ID = id
	return nil
}

func (e *Engine) upsertDevice(ctx context.Context, event *models.BehaviorEvent, score float64) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	return e.devices.Upsert(ctx, event.UserID, event.DeviceFingerprint,
		event.DeviceType, event.OS, event.Browser, score, event.Timestamp)
}

func (e *Engine) rebuild(ctx context.Context, userID int64) (*BaselineSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	baseline, err := e.builder.Rebuild(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("baseline rebuild skipped: %w", err)
	}
	return Summarize(baseline), nil
}

// Summarize reduces a baseline to its summary; nil stays nil
func Summarize(b *models.Baseline) *BaselineSummary {
	if b == nil {
		return nil
	}
	return &BaselineSummary{
		DataPointsCount:    b.DataPointsCount,
		LastUpdated:        b.LastUpdated,
		TypicalHours:       b.Profile.TypicalHours,
		TypicalDeviceTypes: b.Profile.TypicalDeviceTypes,
		TypicalCountries:   b.Profile.TypicalCountries,
		AvgSessionDuration: b.Profile.AvgSessionDuration,
	}
}
