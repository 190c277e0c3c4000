package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimewatch/internal/domain"
)

// Breaker stops calling a provider that keeps failing, so a dead LLM
// endpoint costs one fast error per target instead of a full timeout.
type Breaker struct {
	next Provider
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(next Provider, openFor time.Duration, logger *zap.Logger) *Breaker {
	if openFor <= 0 {
		openFor = 5 * time.Minute
	}
	return &Breaker{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "analysis-provider",
			MaxRequests: 1,
			Timeout:     openFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				if logger != nil {
					logger.Info("analysis_breaker_state",
						zap.String("breaker", name),
						zap.String("from", from.String()),
						zap.String("to", to.String()),
					)
				}
			},
		}),
	}
}

func (b *Breaker) Analyze(ctx context.Context, h History) (json.RawMessage, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Analyze(ctx, h)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", domain.ErrAnalysisProvider, err)
		}
		return nil, err
	}
	return v.(json.RawMessage), nil
}

func (b *Breaker) State() gobreaker.State { return b.cb.State() }
