package analysis

import (
	"testing"
	"time"

	"github.com/hamed0406/uptimewatch/internal/domain"
)

var now = time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)

func ms(v int64) *int64 { return &v }

func check(ago time.Duration, st domain.Status, lat *int64) domain.CheckRecord {
	return domain.CheckRecord{TargetID: "T1", CheckedAt: now.Add(-ago), Status: st, LatencyMS: lat}
}

func TestSummarize_PeriodMetrics(t *testing.T) {
	h := History{
		Target: domain.Target{ID: "T1", Name: "Example", URL: "https://example.com", Status: domain.StatusUp},
		Now:    now,
		Checks: []domain.CheckRecord{
			check(time.Hour, domain.StatusUp, ms(100)),
			check(2*time.Hour, domain.StatusUp, ms(300)),
			check(3*time.Hour, domain.StatusDown, nil),
			check(3*24*time.Hour, domain.StatusDown, ms(1000)),
			check(40*24*time.Hour, domain.StatusDown, ms(9000)),
		},
	}
	s := Summarize(h)

	d := s.Last24h
	if d.TotalChecks != 3 || d.UpChecks != 2 || d.DownChecks != 1 {
		t.Fatalf("24h counts: %+v", d)
	}
	if d.AvgResponseTime != 200 || d.MinResponseTime != 100 || d.MaxResponseTime != 300 || d.ResponseTimeVariance != 10000 {
		t.Fatalf("24h latency: %+v", d)
	}
	if d.UptimePercentage < 66.6 || d.UptimePercentage > 66.7 {
		t.Fatalf("24h uptime: %v", d.UptimePercentage)
	}
	if s.Last7d.TotalChecks != 4 || s.Last30d.TotalChecks != 4 {
		t.Fatalf("7d/30d totals: %d %d", s.Last7d.TotalChecks, s.Last30d.TotalChecks)
	}
	if s.Target.URL != "https://example.com" {
		t.Fatalf("target info: %+v", s.Target)
	}
}

func TestSummarize_EmptyPeriod(t *testing.T) {
	s := Summarize(History{Now: now})
	if s.Last24h != (PeriodMetrics{}) {
		t.Fatalf("expected zero metrics, got %+v", s.Last24h)
	}
	if s.Patterns.IncidentFrequency != "insufficient_data" {
		t.Fatalf("frequency: %s", s.Patterns.IncidentFrequency)
	}
}

func interval(startAgo, length time.Duration) domain.DowntimeInterval {
	d := domain.DowntimeInterval{TargetID: "T1", Start: now.Add(-startAgo), Reason: "HTTP 503"}
	if length > 0 {
		end := d.Start.Add(length)
		d.End = &end
	}
	return d
}

func TestSummarize_IncidentsAndPatterns(t *testing.T) {
	h := History{
		Now: now,
		Intervals: []domain.DowntimeInterval{
			interval(30*time.Minute, 0), // open
			interval(12*time.Hour, 10*time.Minute),
			interval(24*time.Hour, 20*time.Minute),
		},
	}
	s := Summarize(h)
	if len(s.Incidents) != 3 || s.Incidents[0].DurationMinutes != 30 || s.Incidents[1].DurationMinutes != 10 {
		t.Fatalf("incidents: %+v", s.Incidents)
	}
	if s.Patterns.AvgIncidentMinutes != 15 {
		t.Fatalf("avg duration should ignore open incidents: %d", s.Patterns.AvgIncidentMinutes)
	}
	if s.Patterns.IncidentFrequency != "very_high" {
		t.Fatalf("frequency: %s", s.Patterns.IncidentFrequency)
	}
	if s.Patterns.TotalIncidents != 3 {
		t.Fatalf("total: %d", s.Patterns.TotalIncidents)
	}
}

func TestIncidentFrequencyBuckets(t *testing.T) {
	for gap, want := range map[time.Duration]string{
		2 * 24 * time.Hour:  "high",
		5 * 24 * time.Hour:  "moderate",
		10 * 24 * time.Hour: "low",
		40 * 24 * time.Hour: "very_low",
	} {
		got := incidentFrequency([]domain.DowntimeInterval{interval(time.Hour, time.Minute), interval(time.Hour+gap, time.Minute)})
		if got != want {
			t.Errorf("gap %v: want %s, got %s", gap, want, got)
		}
	}
}

func TestPeakFailureHours(t *testing.T) {
	at := func(hour int, st domain.Status) domain.CheckRecord {
		return domain.CheckRecord{CheckedAt: time.Date(2025, 8, 18, hour, 0, 0, 0, time.UTC), Status: st}
	}
	checks := []domain.CheckRecord{
		at(1, domain.StatusUp), at(1, domain.StatusUp),
		at(2, domain.StatusDown), at(2, domain.StatusUp),
		at(3, domain.StatusDown),
		at(4, domain.StatusUp),
		at(5, domain.StatusDown), at(5, domain.StatusUp), at(5, domain.StatusUp), at(5, domain.StatusUp),
	}
	got := peakFailureHours(checks, 3)
	if len(got) != 3 || got[0].Hour != 3 || got[1].Hour != 2 || got[2].Hour != 5 {
		t.Fatalf("unexpected ranking: %+v", got)
	}
}
