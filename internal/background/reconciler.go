package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/vigil/internal/models"
	"golang.org/x/sync/errgroup"
)

// StaleBaselineFinder lists users whose baseline lags behind their events
type StaleBaselineFinder interface {
	// StaleBaselineUsers returns at most limit users; window is the rebuild
	// window size the stored baselines were computed with
	StaleBaselineUsers(ctx context.Context, window, limit int) ([]int64, error)
}

// BaselineRebuilder recomputes one user's baseline
type BaselineRebuilder interface {
	Rebuild(ctx context.Context, userID int64) (*models.Baseline, error)
}

// BaselineReconciler periodically rebuilds baselines that a failed or skipped
// rebuild left stale or missing
type BaselineReconciler struct {
	finder      StaleBaselineFinder
	rebuilder   BaselineRebuilder
	logger      *slog.Logger
	interval    time.Duration
	window      int
	batchSize   int
	concurrency int
	stopCh      chan struct{}
}

// NewBaselineReconciler creates a new baseline reconciler
func NewBaselineReconciler(
	finder StaleBaselineFinder,
	rebuilder BaselineRebuilder,
	logger *slog.Logger,
	interval time.Duration,
	window int,
	batchSize int,
) *BaselineReconciler {
	return &BaselineReconciler{
		finder:      finder,
		rebuilder:   rebuilder,
		logger:      logger,
		interval:    interval,
		window:      window,
		batchSize:   batchSize,
		concurrency: 4,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the periodic reconcile task
func (r *BaselineReconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Run immediately on startup
	r.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-r.stopCh:
			r.logger.Info("baseline reconciler stopped")
			return
		case <-ctx.Done():
			r.logger.Info("baseline reconciler context cancelled")
			return
		}
	}
}

// RunOnce rebuilds one batch of stale baselines and returns how many succeeded
func (r *BaselineReconciler) RunOnce(ctx context.Context) int {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	userIDs, err := r.finder.StaleBaselineUsers(runCtx, r.window, r.batchSize)
	if err != nil {
		r.logger.Error("failed to list stale baselines", slog.Any("error", err))
		return 0
	}
	if len(userIDs) == 0 {
		return 0
	}

	results := make([]bool, len(userIDs))
	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(r.concurrency)

	for i, userID := range userIDs {
		g.Go(func() error {
			if _, err := r.rebuilder.Rebuild(gctx, userID); err != nil {
				r.logger.Warn("baseline reconcile failed",
					slog.Int64("user_id", userID),
					slog.Any("error", err))
				return nil
			}
			results[i] = true
			return nil
		})
	}
	_ = g.Wait()

	rebuilt := 0
	for _, ok := range results {
		if ok {
			rebuilt++
		}
	}

	r.logger.Info("baseline reconcile completed",
		slog.Int("stale", len(userIDs)),
		slog.Int("rebuilt", rebuilt))

	return rebuilt
}

// Stop signals the reconciler to stop
func (r *BaselineReconciler) Stop() {
	close(r.stopCh)
}
