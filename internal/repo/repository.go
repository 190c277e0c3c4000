package repo

import (
	"context"
	"errors"
	"time"

	"github.com/hamed0406/uptimewatch/internal/domain"
)

// ErrOpenIntervalExists is returned by CreateInterval when the backend's
// uniqueness guard rejects a second open interval for a target.
var ErrOpenIntervalExists = errors.New("open downtime interval already exists")

// Ports (interfaces). Adapters live in memory/, postgres/ and sqlstore/.
type TargetStore interface {
	// ListActive returns active targets in stable store order.
	ListActive(ctx context.Context) ([]*domain.Target, error)
	ListTargets(ctx context.Context) ([]*domain.Target, error)
	// GetTarget returns domain.ErrNotFound for unknown IDs.
	GetTarget(ctx context.Context, id domain.TargetID) (*domain.Target, error)
	// RecordProbe stores the latest status, latency and check time.
	RecordProbe(ctx context.Context, id domain.TargetID, status domain.Status, latencyMS *int64, at time.Time) error
	SetLastDowntime(ctx context.Context, id domain.TargetID, at time.Time) error
}

type CheckStore interface {
	AppendCheck(ctx context.Context, c *domain.CheckRecord) error
	// RecentChecks returns up to limit records, newest first.
	RecentChecks(ctx context.Context, id domain.TargetID, limit int) ([]domain.CheckRecord, error)
}

type DowntimeStore interface {
	// OpenInterval returns nil, nil when the target has no open interval.
	OpenInterval(ctx context.Context, id domain.TargetID) (*domain.DowntimeInterval, error)
	CreateInterval(ctx context.Context, d *domain.DowntimeInterval) error
	CloseInterval(ctx context.Context, intervalID string, end time.Time) error
	// RecentIntervals returns up to limit intervals, newest start first.
	RecentIntervals(ctx context.Context, id domain.TargetID, limit int) ([]domain.DowntimeInterval, error)
	// IntervalsSince returns intervals still open or ending at or after since.
	IntervalsSince(ctx context.Context, id domain.TargetID, since time.Time) ([]domain.DowntimeInterval, error)
}

type PredictionStore interface {
	SavePrediction(ctx context.Context, p *domain.PredictionRecord) error
	// LatestPrediction returns domain.ErrNotFound when none exists.
	LatestPrediction(ctx context.Context, id domain.TargetID) (*domain.PredictionRecord, error)
}

type OwnerLimitsProvider interface {
	// OwnerLimits returns domain.ErrNotFound for unknown owners.
	OwnerLimits(ctx context.Context, ownerID string) (domain.OwnerLimits, error)
}

// Seeder loads targets and owners. Production data arrives through the
// account service; this exists for local runs and tests.
type Seeder interface {
	AddTarget(ctx context.Context, t *domain.Target) error
	PutOwner(ctx context.Context, o domain.OwnerLimits) error
}

type Store interface {
	TargetStore
	CheckStore
	DowntimeStore
	PredictionStore
	OwnerLimitsProvider
	Seeder
}
