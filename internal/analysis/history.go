package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/hamed0406/uptimewatch/internal/domain"
)

type PeriodMetrics struct {
	TotalChecks          int     `json:"total_checks"`
	UpChecks             int     `json:"up_checks"`
	DownChecks           int     `json:"down_checks"`
	UptimePercentage     float64 `json:"uptime_percentage"`
	AvgResponseTime      int64   `json:"avg_response_time_ms"`
	MaxResponseTime      int64   `json:"max_response_time_ms"`
	MinResponseTime      int64   `json:"min_response_time_ms"`
	ResponseTimeVariance int64   `json:"response_time_variance"`
}

type Incident struct {
	Start           time.Time  `json:"start"`
	End             *time.Time `json:"end"`
	DurationMinutes int64      `json:"duration_minutes"`
	Reason          string     `json:"reason"`
}

type FailureHour struct {
	Hour        int     `json:"hour"`
	FailureRate float64 `json:"failure_rate"`
}

type Patterns struct {
	PeakFailureHours   []FailureHour `json:"peak_failure_hours"`
	IncidentFrequency  string        `json:"incident_frequency"`
	TotalIncidents     int           `json:"total_incidents"`
	AvgIncidentMinutes int64         `json:"avg_incident_minutes"`
}

type TargetInfo struct {
	Name                 string        `json:"name"`
	URL                  string        `json:"url"`
	Status               domain.Status `json:"current_status"`
	CheckIntervalSeconds int           `json:"check_interval_seconds"`
}

// Summary is the condensed history handed to providers.
type Summary struct {
	Target    TargetInfo    `json:"target"`
	Last24h   PeriodMetrics `json:"last_24h"`
	Last7d    PeriodMetrics `json:"last_7d"`
	Last30d   PeriodMetrics `json:"last_30d"`
	Incidents []Incident    `json:"incidents"`
	Patterns  Patterns      `json:"patterns"`
}

func Summarize(h History) Summary {
	now := h.Now
	s := Summary{
		Target: TargetInfo{
			Name:                 h.Target.Name,
			URL:                  h.Target.URL,
			Status:               h.Target.Status,
			CheckIntervalSeconds: h.CheckIntervalSeconds,
		},
		Last24h:   periodMetrics(h.Checks, now.Add(-24*time.Hour)),
		Last7d:    periodMetrics(h.Checks, now.Add(-7*24*time.Hour)),
		Last30d:   periodMetrics(h.Checks, now.Add(-30*24*time.Hour)),
		Incidents: make([]Incident, 0, len(h.Intervals)),
	}
	for _, d := range h.Intervals {
		s.Incidents = append(s.Incidents, Incident{
			Start:           d.Start,
			End:             d.End,
			DurationMinutes: minutes(d.Duration(now)),
			Reason:          d.Reason,
		})
	}

	recent := h.Intervals
	if len(recent) > 10 {
		recent = recent[:10]
	}
	s.Patterns = Patterns{
		PeakFailureHours:   peakFailureHours(h.Checks, 3),
		IncidentFrequency:  incidentFrequency(recent),
		TotalIncidents:     len(h.Intervals),
		AvgIncidentMinutes: avgIncidentMinutes(h.Intervals),
	}
	return s
}

func periodMetrics(checks []domain.CheckRecord, since time.Time) PeriodMetrics {
	var (
		m     PeriodMetrics
		times []int64
	)
	for _, c := range checks {
		if c.CheckedAt.Before(since) {
			continue
		}
		m.TotalChecks++
		switch c.Status {
		case domain.StatusUp:
			m.UpChecks++
		case domain.StatusDown:
			m.DownChecks++
		}
		if c.LatencyMS != nil {
			times = append(times, *c.LatencyMS)
		}
	}
	if m.TotalChecks == 0 {
		return m
	}
	m.UptimePercentage = float64(m.UpChecks) / float64(m.TotalChecks) * 100
	if len(times) == 0 {
		return m
	}

	var sum int64
	m.MinResponseTime, m.MaxResponseTime = times[0], times[0]
	for _, v := range times {
		sum += v
		m.MinResponseTime = min(m.MinResponseTime, v)
		m.MaxResponseTime = max(m.MaxResponseTime, v)
	}
	avg := float64(sum) / float64(len(times))
	var sq float64
	for _, v := range times {
		sq += (float64(v) - avg) * (float64(v) - avg)
	}
	m.AvgResponseTime = int64(math.Round(avg))
	m.ResponseTimeVariance = int64(math.Round(sq / float64(len(times))))
	return m
}

// peakFailureHours ranks UTC hours of day by share of down checks.
func peakFailureHours(checks []domain.CheckRecord, n int) []FailureHour {
	var up, down [24]int
	seen := make([]bool, 24)
	for _, c := range checks {
		h := c.CheckedAt.UTC().Hour()
		seen[h] = true
		switch c.Status {
		case domain.StatusUp:
			up[h]++
		case domain.StatusDown:
			down[h]++
		}
	}
	out := make([]FailureHour, 0, 24)
	for h := 0; h < 24; h++ {
		if !seen[h] {
			continue
		}
		rate := 0.0
		if total := up[h] + down[h]; total > 0 {
			rate = float64(down[h]) / float64(total)
		}
		out = append(out, FailureHour{Hour: h, FailureRate: rate})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FailureRate > out[j].FailureRate })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// incidentFrequency buckets the mean gap between consecutive incident
// starts. intervals must be newest first.
func incidentFrequency(intervals []domain.DowntimeInterval) string {
	if len(intervals) < 2 {
		return "insufficient_data"
	}
	var total time.Duration
	for i := 0; i < len(intervals)-1; i++ {
		total += intervals[i].Start.Sub(intervals[i+1].Start)
	}
	days := (total / time.Duration(len(intervals)-1)).Hours() / 24
	switch {
	case days < 1:
		return "very_high"
	case days < 3:
		return "high"
	case days < 7:
		return "moderate"
	case days < 30:
		return "low"
	default:
		return "very_low"
	}
}

func avgIncidentMinutes(intervals []domain.DowntimeInterval) int64 {
	var (
		total time.Duration
		n     int
	)
	for _, d := range intervals {
		if d.End == nil {
			continue
		}
		total += d.End.Sub(d.Start)
		n++
	}
	if n == 0 {
		return 0
	}
	return minutes(total / time.Duration(n))
}

func minutes(d time.Duration) int64 {
	return int64(math.Round(d.Minutes()))
}
