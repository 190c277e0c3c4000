package analysis

import (
	"context"
	"encoding/json"
	"fmt"
)

type OutageWindow struct {
	Likelihood   int     `json:"likelihood"`
	Timeframe    string  `json:"timeframe"`
	SpecificTime *string `json:"specific_time"`
}

type RiskFactor struct {
	Factor      string `json:"factor"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

type Trends struct {
	ResponseTime string `json:"response_time"`
	Uptime       string `json:"uptime"`
	Reliability  string `json:"reliability"`
}

type Recommendation struct {
	Priority  string `json:"priority"`
	Action    string `json:"action"`
	Reasoning string `json:"reasoning"`
}

// Prediction is the payload shape both providers aim for.
type Prediction struct {
	RiskLevel       string           `json:"risk_level"`
	Confidence      int              `json:"prediction_confidence"`
	OutageWindow    OutageWindow     `json:"predicted_outage_window"`
	RiskFactors     []RiskFactor     `json:"key_risk_factors"`
	Trends          Trends           `json:"performance_trends"`
	Recommendations []Recommendation `json:"recommendations"`
	HealthScore     int              `json:"health_score"`
	Summary         string           `json:"summary"`
	Source          string           `json:"source,omitempty"`
}

// Rules predicts from last-24h uptime and latency thresholds. It needs no
// network and never fails, so it backs the LLM provider.
type Rules struct{}

func (Rules) Analyze(ctx context.Context, h History) (json.RawMessage, error) {
	return json.Marshal(Predict(Summarize(h)))
}

func Predict(s Summary) Prediction {
	day, week := s.Last24h, s.Last7d

	risk, health := "low", 85
	switch {
	case day.UptimePercentage < 95:
		risk, health = "high", 40
	case day.UptimePercentage < 98:
		risk, health = "medium", 65
	}
	if day.AvgResponseTime > 5000 {
		if risk == "low" {
			risk = "medium"
		} else {
			risk = "high"
		}
		health -= 20
	}
	health = max(0, min(100, health))

	likelihood := 15
	switch risk {
	case "high":
		likelihood = 80
	case "medium":
		likelihood = 40
	}

	latencySeverity := "low"
	if day.AvgResponseTime > 3000 {
		latencySeverity = "high"
	}
	trends := Trends{ResponseTime: "stable", Uptime: "stable", Reliability: "stable"}
	if day.AvgResponseTime > week.AvgResponseTime {
		trends.ResponseTime = "degrading"
	}
	if day.UptimePercentage < week.UptimePercentage {
		trends.Uptime = "degrading"
	}

	return Prediction{
		RiskLevel:    risk,
		Confidence:   70,
		OutageWindow: OutageWindow{Likelihood: likelihood, Timeframe: "next_24_hours"},
		RiskFactors: []RiskFactor{{
			Factor:      "Response Time",
			Severity:    latencySeverity,
			Description: fmt.Sprintf("Average response time is %dms", day.AvgResponseTime),
		}},
		Trends: trends,
		Recommendations: []Recommendation{{
			Priority:  "medium",
			Action:    "Monitor response times closely",
			Reasoning: "Response time patterns indicate potential issues",
		}},
		HealthScore: health,
		Summary:     fmt.Sprintf("Website health is %s risk with %d%% health score", risk, health),
		Source:      "rules",
	}
}
