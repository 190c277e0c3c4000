// Package analysis produces outage-risk predictions from a target's
// probe history. The scheduler only triggers providers and stores their
// payloads; what a prediction contains is up to the provider.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimewatch/internal/domain"
)

// History is what a provider sees for one target. Checks and Intervals are
// newest first.
type History struct {
	Target               domain.Target
	CheckIntervalSeconds int
	Checks               []domain.CheckRecord
	Intervals            []domain.DowntimeInterval
	Now                  time.Time
}

type Provider interface {
	Analyze(ctx context.Context, h History) (json.RawMessage, error)
}

// WithFallback asks Secondary when Primary fails.
type WithFallback struct {
	Primary   Provider
	Secondary Provider
	Logger    *zap.Logger
}

func (w *WithFallback) Analyze(ctx context.Context, h History) (json.RawMessage, error) {
	out, err := w.Primary.Analyze(ctx, h)
	if err == nil {
		return out, nil
	}
	if w.Logger != nil {
		w.Logger.Warn("analysis_primary_failed",
			zap.String("target_id", string(h.Target.ID)),
			zap.Error(err),
		)
	}
	out, ferr := w.Secondary.Analyze(ctx, h)
	if ferr != nil {
		return nil, fmt.Errorf("%w: fallback after %v: %w", domain.ErrAnalysisProvider, err, ferr)
	}
	return out, nil
}
