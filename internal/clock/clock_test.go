package clock

import (
	"testing"
	"time"
)

func TestFake_AdvanceFiresDueTimers(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	early := f.After(time.Second)
	late := f.After(3 * time.Second)

	f.Advance(2 * time.Second)
	select {
	case got := <-early:
		if !got.Equal(start.Add(2 * time.Second)) {
			t.Fatalf("fired at %v", got)
		}
	default:
		t.Fatal("1s timer should have fired")
	}
	select {
	case <-late:
		t.Fatal("3s timer fired early")
	default:
	}
	if f.Pending() != 1 {
		t.Fatalf("want 1 pending, got %d", f.Pending())
	}

	f.Advance(time.Second)
	select {
	case <-late:
	default:
		t.Fatal("3s timer should have fired")
	}
}

func TestFake_NonPositiveFiresImmediately(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	select {
	case <-f.After(0):
	default:
		t.Fatal("zero duration should fire immediately")
	}
	if f.Pending() != 0 {
		t.Fatalf("want no pending timers, got %d", f.Pending())
	}
}

func TestFake_BlockUntil(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	done := make(chan struct{})
	go func() {
		f.BlockUntil(2)
		close(done)
	}()
	f.After(time.Second)
	f.After(time.Second)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("BlockUntil did not return")
	}
}

func TestReal_AfterZero(t *testing.T) {
	select {
	case <-Real{}.After(-time.Second):
	case <-time.After(time.Second):
		t.Fatal("negative duration should fire immediately")
	}
}
