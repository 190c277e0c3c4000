package domain

import (
	"encoding/json"
	"time"
)

// CheckRecord is one probe outcome. Append-only.
type CheckRecord struct {
	ID        string    `json:"id"`
	TargetID  TargetID  `json:"target_id"`
	CheckedAt time.Time `json:"checked_at"`
	Status    Status    `json:"status"`
	LatencyMS *int64    `json:"latency_ms"` // nil when no response arrived
}

// DowntimeInterval is an outage. End is nil while it is open.
type DowntimeInterval struct {
	ID       string     `json:"id"`
	TargetID TargetID   `json:"target_id"`
	Start    time.Time  `json:"start"`
	End      *time.Time `json:"end"`
	Reason   string     `json:"reason"`
}

func (d DowntimeInterval) Open() bool { return d.End == nil }

// Duration measures the interval, using now for an open one.
func (d DowntimeInterval) Duration(now time.Time) time.Duration {
	end := now
	if d.End != nil {
		end = *d.End
	}
	if end.Before(d.Start) {
		return 0
	}
	return end.Sub(d.Start)
}

// PredictionRecord stores an analysis payload verbatim.
type PredictionRecord struct {
	ID        string          `json:"id"`
	TargetID  TargetID        `json:"target_id"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}
