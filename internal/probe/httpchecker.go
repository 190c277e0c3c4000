package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/hamed0406/uptimewatch/internal/domain"
)

const DefaultUserAgent = "Uptime-Monitor/1.0"

type HTTPChecker struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPChecker builds a GET prober. Redirects are followed up to
// maxRedirects hops; one more is a transport failure.
func NewHTTPChecker(timeout time.Duration, maxRedirects int, userAgent string) *HTTPChecker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxRedirects < 0 {
		maxRedirects = 0
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPChecker{
		Client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				req.Header.Set("User-Agent", userAgent)
				return nil
			},
		},
		UserAgent: userAgent,
	}
}

func (h *HTTPChecker) Check(ctx context.Context, target string) CheckResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return CheckResult{Status: domain.StatusDown, Failure: FailureTransport, Message: err.Error()}
	}
	req.Header.Set("User-Agent", h.UserAgent)

	start := time.Now()
	resp, err := h.Client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return CheckResult{Status: domain.StatusDown, Failure: FailureTimeout, Message: "timeout: " + err.Error()}
		}
		return CheckResult{Status: domain.StatusDown, Failure: FailureTransport, Message: err.Error()}
	}
	latency := time.Since(start).Milliseconds()
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 500 {
		return CheckResult{
			Status:     domain.StatusDown,
			StatusCode: resp.StatusCode,
			LatencyMS:  &latency,
			Failure:    FailureServerError,
			Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
		}
	}
	return CheckResult{
		Status:     domain.StatusUp,
		StatusCode: resp.StatusCode,
		LatencyMS:  &latency,
		Message:    resp.Status,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
