package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimewatch/internal/domain"
)

type stubProvider struct {
	calls int
	out   json.RawMessage
	err   error
}

func (s *stubProvider) Analyze(ctx context.Context, h History) (json.RawMessage, error) {
	s.calls++
	return s.out, s.err
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &stubProvider{err: errors.New("upstream down")}
	b := NewBreaker(inner, time.Hour, zap.NewNop())

	for i := 0; i < 3; i++ {
		if _, err := b.Analyze(context.Background(), History{}); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("breaker should be open, got %s", b.State())
	}
	_, err := b.Analyze(context.Background(), History{})
	if !errors.Is(err, domain.ErrAnalysisProvider) || !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("want open-state error, got %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("open breaker should not call through, calls=%d", inner.calls)
	}
}

func TestBreaker_PassesThroughSuccess(t *testing.T) {
	inner := &stubProvider{out: json.RawMessage(`{"ok":true}`)}
	raw, err := NewBreaker(inner, 0, nil).Analyze(context.Background(), History{})
	if err != nil || string(raw) != `{"ok":true}` {
		t.Fatalf("got %s %v", raw, err)
	}
}

func TestWithFallback(t *testing.T) {
	primary := &stubProvider{err: errors.New("llm down")}
	p := &WithFallback{Primary: primary, Secondary: Rules{}, Logger: zap.NewNop()}
	raw, err := p.Analyze(context.Background(), History{Now: now})
	if err != nil {
		t.Fatalf("fallback should succeed: %v", err)
	}
	var pred Prediction
	if err := json.Unmarshal(raw, &pred); err != nil || pred.Source != "rules" {
		t.Fatalf("expected rules payload, got %s (%v)", raw, err)
	}

	both := &WithFallback{Primary: primary, Secondary: &stubProvider{err: errors.New("also down")}}
	if _, err := both.Analyze(context.Background(), History{}); !errors.Is(err, domain.ErrAnalysisProvider) {
		t.Fatalf("want ErrAnalysisProvider, got %v", err)
	}
}
