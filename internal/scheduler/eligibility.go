package scheduler

import (
	"time"

	"github.com/hamed0406/uptimewatch/internal/domain"
)

type Candidate struct {
	Target *domain.Target
	Owner  domain.OwnerLimits
}

// Eligible keeps candidates whose subscription is valid and whose owner
// interval has elapsed since the last check. Order is preserved.
func Eligible(now time.Time, cands []Candidate) []Candidate {
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if IsEligible(now, c.Target, c.Owner) {
			out = append(out, c)
		}
	}
	return out
}

func IsEligible(now time.Time, t *domain.Target, o domain.OwnerLimits) bool {
	if !t.IsActive || !o.SubscriptionValid(now) {
		return false
	}
	if t.LastChecked == nil {
		return true
	}
	return now.Sub(*t.LastChecked) >= o.CheckInterval()
}
