package scheduler

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimewatch/internal/clock"
)

// Dispatcher starts task i no earlier than i*Delay after dispatch begins
// and returns once every task has finished. A panicking task is logged and
// does not affect its siblings.
type Dispatcher struct {
	Clock          clock.Clock
	Delay          time.Duration
	MaxConcurrency int // 0 runs every task in its own goroutine
	Logger         *zap.Logger
}

func (d *Dispatcher) Dispatch(ctx context.Context, n int, task func(ctx context.Context, i int)) {
	if n == 0 {
		return
	}
	p := pool.New()
	if d.MaxConcurrency > 0 {
		p = p.WithMaxGoroutines(d.MaxConcurrency)
	}
	start := d.Clock.Now()
	for i := 0; i < n; i++ {
		i := i
		p.Go(func() {
			offset := time.Duration(i) * d.Delay
			select {
			case <-d.Clock.After(start.Add(offset).Sub(d.Clock.Now())):
			case <-ctx.Done():
				return
			}
			var pc panics.Catcher
			pc.Try(func() { task(ctx, i) })
			if r := pc.Recovered(); r != nil {
				d.Logger.Error("probe_task_panic",
					zap.Int("index", i),
					zap.Any("panic", r.Value),
					zap.ByteString("stack", r.Stack),
				)
			}
		})
	}
	p.Wait()
}
