package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/hamed0406/uptimewatch/internal/domain"
	"github.com/hamed0406/uptimewatch/internal/repo"
)

const DefaultReasonMax = 500

// Ledger keeps at most one open downtime interval per target. Both
// operations are idempotent and run on every result, so a write lost in
// one cycle is repaired by the next.
//
// The open-interval check and the insert are separate calls. That is safe
// because a target is probed at most once per cycle and cycles never
// overlap; backends with a unique index on open intervals also reject a
// racing insert with repo.ErrOpenIntervalExists.
type Ledger struct {
	Targets   repo.TargetStore
	Downtime  repo.DowntimeStore
	ReasonMax int
}

// EnsureOpen opens an interval starting at at unless one is open already.
func (l *Ledger) EnsureOpen(ctx context.Context, id domain.TargetID, reason string, at time.Time) (bool, error) {
	open, err := l.Downtime.OpenInterval(ctx, id)
	if err != nil {
		return false, fmt.Errorf("%w: find open interval: %w", domain.ErrPersistence, err)
	}
	if open != nil {
		return false, nil
	}

	err = l.Downtime.CreateInterval(ctx, &domain.DowntimeInterval{
		TargetID: id,
		Start:    at,
		Reason:   truncate(reason, l.reasonMax()),
	})
	if errors.Is(err, repo.ErrOpenIntervalExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: create interval: %w", domain.ErrPersistence, err)
	}
	if err := l.Targets.SetLastDowntime(ctx, id, at); err != nil {
		return true, fmt.Errorf("%w: set last downtime: %w", domain.ErrPersistence, err)
	}
	return true, nil
}

// EnsureClosed closes the open interval, if any, and returns it.
func (l *Ledger) EnsureClosed(ctx context.Context, id domain.TargetID, at time.Time) (*domain.DowntimeInterval, error) {
	open, err := l.Downtime.OpenInterval(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: find open interval: %w", domain.ErrPersistence, err)
	}
	if open == nil {
		return nil, nil
	}
	if err := l.Downtime.CloseInterval(ctx, open.ID, at); err != nil {
		return nil, fmt.Errorf("%w: close interval: %w", domain.ErrPersistence, err)
	}
	open.End = &at
	return open, nil
}

// Uptime reports availability of a target over [now-window, now].
func (l *Ledger) Uptime(ctx context.Context, id domain.TargetID, now time.Time, window time.Duration) (UptimeStats, error) {
	from := now.Add(-window)
	intervals, err := l.Downtime.IntervalsSince(ctx, id, from)
	if err != nil {
		return UptimeStats{}, fmt.Errorf("%w: list intervals: %w", domain.ErrPersistence, err)
	}
	return ComputeUptime(intervals, from, now), nil
}

func (l *Ledger) reasonMax() int {
	if l.ReasonMax <= 0 {
		return DefaultReasonMax
	}
	return l.ReasonMax
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

type UptimeStats struct {
	From          time.Time     `json:"from"`
	To            time.Time     `json:"to"`
	UptimePercent float64       `json:"uptime_percent"`
	TotalDowntime time.Duration `json:"total_downtime_ns"`
	Incidents     int           `json:"incidents"`
}

// ComputeUptime clips each interval to the window; an open interval counts
// up to the window end.
func ComputeUptime(intervals []domain.DowntimeInterval, from, to time.Time) UptimeStats {
	st := UptimeStats{From: from, To: to, UptimePercent: 100}
	window := to.Sub(from)
	if window <= 0 {
		return st
	}
	for _, d := range intervals {
		start := d.Start
		if start.Before(from) {
			start = from
		}
		end := to
		if d.End != nil && d.End.Before(to) {
			end = *d.End
		}
		if !end.After(start) {
			continue
		}
		st.TotalDowntime += end.Sub(start)
		st.Incidents++
	}
	pct := 100 * float64(window-st.TotalDowntime) / float64(window)
	st.UptimePercent = max(0, min(100, pct))
	return st
}
