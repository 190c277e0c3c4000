package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimewatch/internal/clock"
	"github.com/hamed0406/uptimewatch/internal/domain"
	"github.com/hamed0406/uptimewatch/internal/metrics"
	"github.com/hamed0406/uptimewatch/internal/probe"
	"github.com/hamed0406/uptimewatch/internal/repo"
)

var (
	ErrCycleInProgress = errors.New("cycle already in progress")
	ErrDriverStopped   = errors.New("cycle driver stopped")
)

type Anchor string

const (
	// AnchorCompletion schedules the next cycle one interval after the
	// previous one finished. Slow cycles stretch the period.
	AnchorCompletion Anchor = "completion"
	// AnchorNominal keeps ticks on start+k*interval and drops ticks a slow
	// cycle ran over.
	AnchorNominal Anchor = "nominal"
)

type CycleSummary struct {
	Started       time.Time     `json:"started"`
	Duration      time.Duration `json:"duration_ns"`
	Active        int           `json:"active"`
	Eligible      int           `json:"eligible"`
	Probed        int           `json:"probed"`
	Up            int           `json:"up"`
	Down          int           `json:"down"`
	WentDown      int           `json:"went_down"`
	CameBackUp    int           `json:"came_back_up"`
	PersistErrors int           `json:"persist_errors"`
	OwnerErrors   int           `json:"owner_errors"`
	SkippedTicks  int64         `json:"skipped_ticks"`
}

type Driver struct {
	Logger     *zap.Logger
	Clock      clock.Clock
	Targets    repo.TargetStore
	Owners     repo.OwnerLimitsProvider
	Checker    probe.Checker
	Tracker    *Tracker
	Ledger     *Ledger
	Alerter    *Alerter
	Dispatcher *Dispatcher
	Metrics    *metrics.Metrics
	Interval   time.Duration
	Anchor     Anchor

	running atomic.Bool
	skipped atomic.Int64

	// cycle is held for the whole of a cycle, whoever started it.
	cycle   sync.Mutex
	stopped atomic.Bool

	mu      sync.RWMutex
	last    CycleSummary
	hasLast bool
}

// Run performs a cycle immediately and then one per interval until ctx is
// cancelled. Cancellation is observed between cycles; a cycle in flight
// finishes its probes and writes first.
func (d *Driver) Run(ctx context.Context) {
	if d.Interval <= 0 {
		d.Logger.Info("cycle_driver_disabled")
		return
	}
	d.Logger.Info("cycle_driver_started",
		zap.Duration("interval", d.Interval),
		zap.String("anchor", string(d.Anchor)),
	)

	next := d.Clock.Now()
	for {
		if ctx.Err() != nil {
			d.Logger.Info("cycle_driver_stopped")
			return
		}
		select {
		case <-ctx.Done():
			d.Logger.Info("cycle_driver_stopped")
			return
		case <-d.Clock.After(next.Sub(d.Clock.Now())):
		}

		start := d.Clock.Now()
		if _, err := d.RunCycle(context.WithoutCancel(ctx)); errors.Is(err, ErrDriverStopped) {
			d.Logger.Info("cycle_driver_stopped")
			return
		}
		end := d.Clock.Now()

		if d.Anchor == AnchorNominal {
			next = start.Add(d.Interval)
			missed := 0
			for next.Before(end) {
				next = next.Add(d.Interval)
				missed++
			}
			if missed > 0 {
				d.skipped.Add(int64(missed))
				d.Metrics.TicksSkipped(missed)
				d.Logger.Warn("cycle_ticks_skipped", zap.Int("count", missed), zap.Duration("cycle", end.Sub(start)))
			}
			continue
		}
		next = end.Add(d.Interval)
	}
}

// RunCycle runs one full cycle. It returns ErrCycleInProgress instead of
// overlapping a running cycle.
func (d *Driver) RunCycle(ctx context.Context) (CycleSummary, error) {
	if !d.running.CompareAndSwap(false, true) {
		d.skipped.Add(1)
		d.Metrics.TicksSkipped(1)
		return CycleSummary{}, ErrCycleInProgress
	}
	d.cycle.Lock()
	defer func() {
		d.running.Store(false)
		d.cycle.Unlock()
	}()
	if d.stopped.Load() {
		return CycleSummary{}, ErrDriverStopped
	}

	start := d.Clock.Now()
	sum := CycleSummary{Started: start}

	targets, err := d.Targets.ListActive(ctx)
	if err != nil {
		d.Metrics.CycleAborted()
		d.Logger.Warn("cycle_aborted", zap.Error(err))
		return sum, fmt.Errorf("%w: %w", domain.ErrTargetStoreUnavailable, err)
	}
	sum.Active = len(targets)

	cands := d.candidates(ctx, targets, &sum)
	eligible := Eligible(start, cands)
	sum.Eligible = len(eligible)

	var mu sync.Mutex
	d.Dispatcher.Dispatch(ctx, len(eligible), func(ctx context.Context, i int) {
		r := d.processTarget(ctx, eligible[i])
		mu.Lock()
		defer mu.Unlock()
		sum.Probed++
		if r.status == domain.StatusUp {
			sum.Up++
		} else {
			sum.Down++
		}
		switch r.transition {
		case domain.WentDown:
			sum.WentDown++
		case domain.CameBackUp:
			sum.CameBackUp++
		}
		sum.PersistErrors += r.persistErrors
	})

	sum.Duration = d.Clock.Now().Sub(start)
	sum.SkippedTicks = d.skipped.Load()
	d.Metrics.CycleCompleted(sum.Duration)
	d.Logger.Info("cycle_completed",
		zap.Int("active", sum.Active),
		zap.Int("eligible", sum.Eligible),
		zap.Int("probed", sum.Probed),
		zap.Int("up", sum.Up),
		zap.Int("down", sum.Down),
		zap.Int("went_down", sum.WentDown),
		zap.Int("came_back_up", sum.CameBackUp),
		zap.Int("persist_errors", sum.PersistErrors),
		zap.Int("owner_errors", sum.OwnerErrors),
		zap.Duration("duration", sum.Duration),
	)

	d.mu.Lock()
	d.last, d.hasLast = sum, true
	d.mu.Unlock()
	return sum, nil
}

// Drain stops new cycles and waits for one in flight, including a cycle
// started through RunCycle outside Run. Later RunCycle calls return
// ErrDriverStopped.
func (d *Driver) Drain(ctx context.Context) error {
	d.stopped.Store(true)
	done := make(chan struct{})
	go func() {
		d.cycle.Lock()
		d.cycle.Unlock()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain cycle: %w", ctx.Err())
	}
}

// SkippedTicks counts ticks dropped by overruns or overlapping calls.
func (d *Driver) SkippedTicks() int64 { return d.skipped.Load() }

// LastSummary returns the most recent completed cycle.
func (d *Driver) LastSummary() (CycleSummary, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last, d.hasLast
}

// candidates resolves owner limits once per owner. Targets whose owner
// cannot be read are left out of this cycle.
func (d *Driver) candidates(ctx context.Context, targets []*domain.Target, sum *CycleSummary) []Candidate {
	type entry struct {
		limits domain.OwnerLimits
		err    error
	}
	owners := make(map[string]entry)
	out := make([]Candidate, 0, len(targets))
	for _, t := range targets {
		e, ok := owners[t.OwnerID]
		if !ok {
			e.limits, e.err = d.Owners.OwnerLimits(ctx, t.OwnerID)
			owners[t.OwnerID] = e
			if e.err != nil {
				d.Logger.Warn("owner_limits_error", zap.String("owner_id", t.OwnerID), zap.Error(e.err))
			}
		}
		if e.err != nil {
			sum.OwnerErrors++
			continue
		}
		out = append(out, Candidate{Target: t, Owner: e.limits})
	}
	return out
}

type targetResult struct {
	status        domain.Status
	transition    domain.Transition
	persistErrors int
}

func (d *Driver) processTarget(ctx context.Context, c Candidate) targetResult {
	t := c.Target
	res := d.Checker.Check(ctx, t.URL)
	at := d.Clock.Now()
	d.Metrics.Probe(string(res.Status), string(res.Failure))

	out := d.Tracker.Record(ctx, t, res, at)
	r := targetResult{status: res.Status, transition: out.Transition}
	if out.Err != nil {
		r.persistErrors++
		d.Metrics.PersistError()
		d.Logger.Warn("probe_persist_error",
			zap.String("target_id", string(t.ID)),
			zap.String("url", t.URL),
			zap.Error(out.Err),
		)
	}

	var (
		closed *domain.DowntimeInterval
		err    error
	)
	if res.Status == domain.StatusDown {
		_, err = d.Ledger.EnsureOpen(ctx, t.ID, res.Message, at)
	} else {
		closed, err = d.Ledger.EnsureClosed(ctx, t.ID, at)
	}
	if err != nil {
		r.persistErrors++
		d.Metrics.PersistError()
		d.Logger.Warn("downtime_ledger_error",
			zap.String("target_id", string(t.ID)),
			zap.String("status", string(res.Status)),
			zap.Error(err),
		)
	}

	d.Logger.Debug("target_checked",
		zap.String("target_id", string(t.ID)),
		zap.String("url", t.URL),
		zap.Int("status_code", res.StatusCode),
		zap.String("status", string(res.Status)),
		zap.String("reason", res.Message),
	)

	if out.Transition != domain.NoTransition {
		d.Metrics.Transition(out.Transition.String())
		_ = d.Alerter.Notify(ctx, Alert{
			Target:     t,
			Owner:      c.Owner,
			Transition: out.Transition,
			Result:     res,
			At:         at,
			Closed:     closed,
		})
	}
	return r
}
