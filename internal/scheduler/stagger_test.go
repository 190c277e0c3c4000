package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimewatch/internal/clock"
)

func TestDispatcher_StaggersStarts(t *testing.T) {
	clk := clock.NewFake(t0)
	d := &Dispatcher{Clock: clk, Delay: 200 * time.Millisecond, Logger: zap.NewNop()}

	var mu sync.Mutex
	starts := map[int]time.Time{}
	started := make(chan int, 3)
	done := make(chan struct{})
	go func() {
		d.Dispatch(context.Background(), 3, func(ctx context.Context, i int) {
			mu.Lock()
			starts[i] = clk.Now()
			mu.Unlock()
			started <- i
		})
		close(done)
	}()

	if i := <-started; i != 0 {
		t.Fatalf("first task should start immediately, got %d", i)
	}
	clk.BlockUntil(2)
	clk.Advance(199 * time.Millisecond)
	if n := clk.Pending(); n != 2 {
		t.Fatalf("no task may start before its offset, pending=%d", n)
	}
	clk.Advance(time.Millisecond)
	if i := <-started; i != 1 {
		t.Fatalf("want task 1, got %d", i)
	}
	clk.Advance(200 * time.Millisecond)
	if i := <-started; i != 2 {
		t.Fatalf("want task 2, got %d", i)
	}
	<-done

	for i := 0; i < 3; i++ {
		want := t0.Add(time.Duration(i) * 200 * time.Millisecond)
		if !starts[i].Equal(want) {
			t.Fatalf("task %d started at %v, want %v", i, starts[i], want)
		}
	}
}

func TestDispatcher_PanicIsIsolated(t *testing.T) {
	d := &Dispatcher{Clock: clock.Real{}, Logger: zap.NewNop()}
	var ran atomic.Int32
	d.Dispatch(context.Background(), 3, func(ctx context.Context, i int) {
		if i == 1 {
			panic("probe exploded")
		}
		ran.Add(1)
	})
	if ran.Load() != 2 {
		t.Fatalf("siblings of a panicking task should finish, ran=%d", ran.Load())
	}
}

func TestDispatcher_BoundedConcurrency(t *testing.T) {
	d := &Dispatcher{Clock: clock.Real{}, MaxConcurrency: 2, Logger: zap.NewNop()}
	var cur, peak, ran atomic.Int32
	d.Dispatch(context.Background(), 6, func(ctx context.Context, i int) {
		n := cur.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		cur.Add(-1)
		ran.Add(1)
	})
	if ran.Load() != 6 {
		t.Fatalf("all tasks should run, ran=%d", ran.Load())
	}
	if peak.Load() > 2 {
		t.Fatalf("concurrency exceeded bound: %d", peak.Load())
	}
}

func TestDispatcher_Empty(t *testing.T) {
	d := &Dispatcher{Clock: clock.Real{}, Logger: zap.NewNop()}
	d.Dispatch(context.Background(), 0, func(ctx context.Context, i int) { t.Fatal("no tasks expected") })
}
