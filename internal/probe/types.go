package probe

import (
	"context"

	"github.com/hamed0406/uptimewatch/internal/domain"
)

// Failure classifies why a probe came back down.
type Failure string

const (
	FailureNone        Failure = ""
	FailureTimeout     Failure = "timeout"
	FailureTransport   Failure = "transport"
	FailureServerError Failure = "server_error"
)

// CheckResult holds the outcome of a single probe. Probes never return
// errors; every failure is folded into a down result.
type CheckResult struct {
	Status     domain.Status `json:"status"`
	StatusCode int           `json:"status_code,omitempty"` // 0 when no response arrived
	LatencyMS  *int64        `json:"latency_ms,omitempty"`  // request start to response headers
	Failure    Failure       `json:"failure,omitempty"`
	Message    string        `json:"message"`
}

func (r CheckResult) Up() bool { return r.Status == domain.StatusUp }

// Checker is implemented by anything that can probe a target URL.
type Checker interface {
	Check(ctx context.Context, target string) CheckResult
}
