package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hamed0406/uptimewatch/internal/domain"
	"github.com/hamed0406/uptimewatch/internal/notify"
	"github.com/hamed0406/uptimewatch/internal/probe"
	"github.com/hamed0406/uptimewatch/internal/repo/memory"
)

var t0 = time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)

func ms(v int64) *int64 { return &v }

func upResult() probe.CheckResult {
	return probe.CheckResult{Status: domain.StatusUp, StatusCode: 200, LatencyMS: ms(12), Message: "200 OK"}
}

func downResult(code int) probe.CheckResult {
	return probe.CheckResult{Status: domain.StatusDown, StatusCode: code, LatencyMS: ms(30), Failure: probe.FailureServerError, Message: "HTTP 503"}
}

// scriptedChecker replays results per URL; the last one repeats.
type scriptedChecker struct {
	mu      sync.Mutex
	script  map[string][]probe.CheckResult
	calls   map[string]int
	onCheck func(ctx context.Context, url string)
}

func newScripted(script map[string][]probe.CheckResult) *scriptedChecker {
	return &scriptedChecker{script: script, calls: make(map[string]int)}
}

func (s *scriptedChecker) Check(ctx context.Context, url string) probe.CheckResult {
	if s.onCheck != nil {
		s.onCheck(ctx, url)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.script[url]
	n := s.calls[url]
	s.calls[url]++
	if len(seq) == 0 {
		return upResult()
	}
	if n >= len(seq) {
		n = len(seq) - 1
	}
	return seq[n]
}

func (s *scriptedChecker) count(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[url]
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (r *recordingNotifier) Send(ctx context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

func (r *recordingNotifier) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Kind, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Event.Kind)
	}
	return out
}

var errStore = errors.New("store offline")

// flakyStore wraps the memory store and fails selected operations.
type flakyStore struct {
	*memory.Store
	mu           sync.Mutex
	failList     bool
	failAppend   bool
	failOpen     bool
	failOwnerIDs map[string]bool
}

func (f *flakyStore) set(fn func(f *flakyStore)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *flakyStore) ListActive(ctx context.Context) ([]*domain.Target, error) {
	f.mu.Lock()
	fail := f.failList
	f.mu.Unlock()
	if fail {
		return nil, errStore
	}
	return f.Store.ListActive(ctx)
}

func (f *flakyStore) AppendCheck(ctx context.Context, c *domain.CheckRecord) error {
	f.mu.Lock()
	fail := f.failAppend
	f.mu.Unlock()
	if fail {
		return errStore
	}
	return f.Store.AppendCheck(ctx, c)
}

func (f *flakyStore) OpenInterval(ctx context.Context, id domain.TargetID) (*domain.DowntimeInterval, error) {
	f.mu.Lock()
	fail := f.failOpen
	f.mu.Unlock()
	if fail {
		return nil, errStore
	}
	return f.Store.OpenInterval(ctx, id)
}

func (f *flakyStore) OwnerLimits(ctx context.Context, ownerID string) (domain.OwnerLimits, error) {
	f.mu.Lock()
	fail := f.failOwnerIDs[ownerID]
	f.mu.Unlock()
	if fail {
		return domain.OwnerLimits{}, errStore
	}
	return f.Store.OwnerLimits(ctx, ownerID)
}

func newFlaky() *flakyStore {
	return &flakyStore{Store: memory.New(), failOwnerIDs: map[string]bool{}}
}

func secs(n int) time.Duration { return time.Duration(n) * time.Second }
