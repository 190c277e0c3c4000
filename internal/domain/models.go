package domain

import "time"

type TargetID string

type Status string

const (
	StatusUp      Status = "up"
	StatusDown    Status = "down"
	StatusUnknown Status = "unknown"
)

func (s Status) Valid() bool {
	return s == StatusUp || s == StatusDown || s == StatusUnknown
}

// Target is a monitored URL. Status mirrors the latest CheckRecord.
type Target struct {
	ID           TargetID   `json:"id"`
	OwnerID      string     `json:"owner_id"`
	Name         string     `json:"name"`
	URL          string     `json:"url"`
	IsActive     bool       `json:"is_active"`
	Status       Status     `json:"status"`
	LastChecked  *time.Time `json:"last_checked"`
	LastDowntime *time.Time `json:"last_downtime"`
	LatencyMS    *int64     `json:"latency_ms"`
	CreatedAt    time.Time  `json:"created_at"`
}

type PlanTier string

const (
	PlanFree         PlanTier = "free"
	PlanStarter      PlanTier = "starter"
	PlanProfessional PlanTier = "professional"
	PlanEnterprise   PlanTier = "enterprise"
)

// PredictiveAnalysis reports whether the tier includes batch outage analysis.
func (p PlanTier) PredictiveAnalysis() bool {
	return p == PlanProfessional || p == PlanEnterprise
}

// OwnerLimits is the read-only subscription view of a target's owner.
type OwnerLimits struct {
	OwnerID              string     `json:"owner_id"`
	Email                string     `json:"email"`
	MaxTargets           int        `json:"max_targets"`
	CheckIntervalSeconds int        `json:"check_interval_seconds"`
	PlanTier             PlanTier   `json:"plan_tier"`
	SubscriptionStatus   string     `json:"subscription_status"`
	SubscriptionExpiry   *time.Time `json:"subscription_expiry"`
}

// SubscriptionValid: free plans never lapse; paid plans need an active or
// trial status and an expiry that has not passed.
func (o OwnerLimits) SubscriptionValid(now time.Time) bool {
	if o.PlanTier == PlanFree {
		return true
	}
	if o.SubscriptionStatus != "active" && o.SubscriptionStatus != "trial" {
		return false
	}
	return o.SubscriptionExpiry == nil || now.Before(*o.SubscriptionExpiry)
}

// CheckInterval returns the owner's minimum spacing between probes.
func (o OwnerLimits) CheckInterval() time.Duration {
	return time.Duration(o.CheckIntervalSeconds) * time.Second
}
