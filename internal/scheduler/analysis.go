package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimewatch/internal/analysis"
	"github.com/hamed0406/uptimewatch/internal/clock"
	"github.com/hamed0406/uptimewatch/internal/domain"
	"github.com/hamed0406/uptimewatch/internal/metrics"
	"github.com/hamed0406/uptimewatch/internal/repo"
)

const (
	analysisCheckHistory    = 1000
	analysisIntervalHistory = 50
)

// AnalysisScheduler runs the predictive analysis batch on its own slow
// cadence. Calls within a batch are sequential and spaced to respect
// provider rate limits.
type AnalysisScheduler struct {
	Logger      *zap.Logger
	Clock       clock.Clock
	Targets     repo.TargetStore
	Owners      repo.OwnerLimitsProvider
	Checks      repo.CheckStore
	Downtime    repo.DowntimeStore
	Predictions repo.PredictionStore
	Provider    analysis.Provider
	Metrics     *metrics.Metrics

	Warmup   time.Duration
	Interval time.Duration
	Spacing  time.Duration
}

type BatchSummary struct {
	Eligible int
	Saved    int
	Failed   int
	Skipped  int // left over when the batch was stopped
}

// Run waits for the warm-up, runs a batch, then one batch per interval.
func (a *AnalysisScheduler) Run(ctx context.Context) {
	if a.Interval <= 0 || a.Provider == nil {
		a.Logger.Info("analysis_disabled")
		return
	}
	next := a.Clock.Now().Add(a.Warmup)
	for {
		select {
		case <-ctx.Done():
			a.Logger.Info("analysis_stopped")
			return
		case <-a.Clock.After(next.Sub(a.Clock.Now())):
		}
		start := a.Clock.Now()
		a.RunBatch(ctx)
		next = start.Add(a.Interval)
	}
}

// RunBatch analyzes every entitled target once. Stop requests are honored
// between calls; the call in flight completes and is stored.
func (a *AnalysisScheduler) RunBatch(ctx context.Context) BatchSummary {
	var sum BatchSummary
	now := a.Clock.Now()

	targets, err := a.Targets.ListActive(ctx)
	if err != nil {
		a.Logger.Warn("analysis_list_error", zap.Error(err))
		return sum
	}
	batch := a.entitled(ctx, now, targets)
	sum.Eligible = len(batch)

	for i, c := range batch {
		if i > 0 && a.Spacing > 0 {
			select {
			case <-ctx.Done():
			case <-a.Clock.After(a.Spacing):
			}
		}
		if ctx.Err() != nil {
			sum.Skipped = len(batch) - i
			a.Logger.Info("analysis_batch_stopped", zap.Int("skipped", sum.Skipped))
			break
		}
		if err := a.analyze(context.WithoutCancel(ctx), c); err != nil {
			sum.Failed++
			a.Metrics.Analysis(false)
			a.Logger.Warn("analysis_error",
				zap.String("target_id", string(c.Target.ID)),
				zap.Error(err),
			)
			continue
		}
		sum.Saved++
		a.Metrics.Analysis(true)
	}

	a.Logger.Info("analysis_batch_completed",
		zap.Int("eligible", sum.Eligible),
		zap.Int("saved", sum.Saved),
		zap.Int("failed", sum.Failed),
		zap.Int("skipped", sum.Skipped),
	)
	return sum
}

func (a *AnalysisScheduler) entitled(ctx context.Context, now time.Time, targets []*domain.Target) []Candidate {
	owners := make(map[string]*domain.OwnerLimits)
	var out []Candidate
	for _, t := range targets {
		o, seen := owners[t.OwnerID]
		if !seen {
			limits, err := a.Owners.OwnerLimits(ctx, t.OwnerID)
			if err != nil {
				a.Logger.Warn("analysis_owner_error", zap.String("owner_id", t.OwnerID), zap.Error(err))
			} else {
				o = &limits
			}
			owners[t.OwnerID] = o
		}
		if o == nil || !o.PlanTier.PredictiveAnalysis() || !o.SubscriptionValid(now) {
			continue
		}
		out = append(out, Candidate{Target: t, Owner: *o})
	}
	return out
}

func (a *AnalysisScheduler) analyze(ctx context.Context, c Candidate) error {
	checks, err := a.Checks.RecentChecks(ctx, c.Target.ID, analysisCheckHistory)
	if err != nil {
		return fmt.Errorf("%w: load checks: %w", domain.ErrPersistence, err)
	}
	intervals, err := a.Downtime.RecentIntervals(ctx, c.Target.ID, analysisIntervalHistory)
	if err != nil {
		return fmt.Errorf("%w: load intervals: %w", domain.ErrPersistence, err)
	}
	payload, err := a.Provider.Analyze(ctx, analysis.History{
		Target:               *c.Target,
		CheckIntervalSeconds: c.Owner.CheckIntervalSeconds,
		Checks:               checks,
		Intervals:            intervals,
		Now:                  a.Clock.Now(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrAnalysisProvider) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrAnalysisProvider, err)
	}
	err = a.Predictions.SavePrediction(ctx, &domain.PredictionRecord{
		TargetID:  c.Target.ID,
		CreatedAt: a.Clock.Now(),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("%w: save prediction: %w", domain.ErrPersistence, err)
	}
	return nil
}
