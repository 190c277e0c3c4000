package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/hamed0406/uptimewatch/internal/domain"
	"github.com/hamed0406/uptimewatch/internal/probe"
	"github.com/hamed0406/uptimewatch/internal/repo"
)

type Tracker struct {
	Targets repo.TargetStore
	Checks  repo.CheckStore
	State   StateStore
}

type Outcome struct {
	Previous   domain.Status
	Current    domain.Status
	Transition domain.Transition
	Err        error // wraps domain.ErrPersistence
}

// Record persists a probe result and classifies the status change. The
// cache is updated and the transition reported even when persistence
// fails, so alerts follow what was observed.
func (t *Tracker) Record(ctx context.Context, target *domain.Target, res probe.CheckResult, at time.Time) Outcome {
	prev, ok := t.State.Get(target.ID)
	if !ok {
		// cold cache: the stored status is the last thing anyone observed
		prev = domain.StatusUnknown
		if target.Status.Valid() {
			prev = target.Status
		}
	}

	out := Outcome{
		Previous:   prev,
		Current:    res.Status,
		Transition: domain.TransitionBetween(prev, res.Status),
	}

	var err error
	err = multierr.Append(err, t.Checks.AppendCheck(ctx, &domain.CheckRecord{
		TargetID:  target.ID,
		CheckedAt: at,
		Status:    res.Status,
		LatencyMS: res.LatencyMS,
	}))
	err = multierr.Append(err, t.Targets.RecordProbe(ctx, target.ID, res.Status, res.LatencyMS, at))
	if err != nil {
		out.Err = fmt.Errorf("%w: record probe for %s: %w", domain.ErrPersistence, target.ID, err)
	}

	t.State.Set(target.ID, res.Status)
	return out
}
