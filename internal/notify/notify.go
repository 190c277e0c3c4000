package notify

import (
	"context"
	"time"

	"go.uber.org/multierr"
)

type Kind string

const (
	KindDown Kind = "down"
	KindUp   Kind = "up"
)

// Event is the structured form of an alert, used by machine consumers.
type Event struct {
	TargetID        string    `json:"target_id"`
	TargetName      string    `json:"target_name"`
	URL             string    `json:"url"`
	OwnerID         string    `json:"owner_id"`
	Kind            Kind      `json:"kind"`
	Reason          string    `json:"reason,omitempty"`
	StatusCode      int       `json:"status_code,omitempty"`
	LatencyMS       *int64    `json:"latency_ms,omitempty"`
	DowntimeSeconds *int64    `json:"downtime_seconds,omitempty"`
	At              time.Time `json:"at"`
}

// Message is one alert. Recipient is the owner's contact address and may be
// empty for channels that do not need one.
type Message struct {
	Recipient string
	Subject   string
	Body      string
	Event     Event
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Multi delivers to every channel and reports all failures.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, msg Message) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, msg))
	}
	return err
}
