package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/hamed0406/uptimewatch/internal/clock"
)

// RetryChecker re-probes a down target before reporting it.
type RetryChecker struct {
	Inner    Checker
	Attempts int
	Backoff  time.Duration
	Clock    clock.Clock // nil means clock.Real
}

func (r *RetryChecker) Check(ctx context.Context, target string) CheckResult {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var last CheckResult
	for i := 0; i < attempts; i++ {
		last = r.Inner.Check(ctx, target)
		if last.Up() {
			return last
		}
		if i == attempts-1 {
			break
		}
		if r.Backoff > 0 {
			select {
			case <-ctx.Done():
				return last
			case <-r.clock().After(r.Backoff):
			}
		}
	}
	if attempts > 1 {
		last.Message = fmt.Sprintf("%s (after %d attempts)", last.Message, attempts)
	}
	return last
}

func (r *RetryChecker) clock() clock.Clock {
	if r.Clock == nil {
		return clock.Real{}
	}
	return r.Clock
}
