package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimewatch/internal/domain"
	"github.com/hamed0406/uptimewatch/internal/repo"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := New(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("New store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return store
}

func addTarget(t *testing.T, s *Store) *domain.Target {
	t.Helper()
	owner := fmt.Sprintf("owner-%d", time.Now().UnixNano())
	if err := s.PutOwner(context.Background(), domain.OwnerLimits{
		OwnerID: owner, Email: "ops@example.com", CheckIntervalSeconds: 60, PlanTier: domain.PlanProfessional,
		SubscriptionStatus: "active",
	}); err != nil {
		t.Fatalf("PutOwner: %v", err)
	}
	tgt := &domain.Target{
		OwnerID:  owner,
		Name:     "example",
		URL:      fmt.Sprintf("https://example.com/test-%d", time.Now().UnixNano()),
		IsActive: true,
	}
	if err := s.AddTarget(context.Background(), tgt); err != nil {
		t.Fatalf("AddTarget: %v", err)
	}
	return tgt
}

func TestPostgresStore_TargetsAndChecks(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	tgt := addTarget(t, s)

	got, err := s.GetTarget(ctx, tgt.ID)
	if err != nil {
		t.Fatalf("GetTarget: %v", err)
	}
	if got.Status != domain.StatusUnknown || got.LastChecked != nil {
		t.Fatalf("fresh target: %+v", got)
	}

	at := time.Now().UTC().Truncate(time.Millisecond)
	lat := int64(42)
	if err := s.RecordProbe(ctx, tgt.ID, domain.StatusUp, &lat, at); err != nil {
		t.Fatalf("RecordProbe: %v", err)
	}
	for i := 0; i < 3; i++ {
		c := &domain.CheckRecord{TargetID: tgt.ID, CheckedAt: at.Add(time.Duration(i) * time.Second), Status: domain.StatusUp, LatencyMS: &lat}
		if err := s.AppendCheck(ctx, c); err != nil {
			t.Fatalf("AppendCheck: %v", err)
		}
	}
	checks, err := s.RecentChecks(ctx, tgt.ID, 2)
	if err != nil {
		t.Fatalf("RecentChecks: %v", err)
	}
	if len(checks) != 2 || !checks[0].CheckedAt.After(checks[1].CheckedAt) {
		t.Fatalf("want 2 newest-first checks, got %+v", checks)
	}

	got, _ = s.GetTarget(ctx, tgt.ID)
	if got.Status != domain.StatusUp || got.LatencyMS == nil || *got.LatencyMS != 42 {
		t.Fatalf("probe not recorded: %+v", got)
	}

	active, err := s.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	found := false
	for _, x := range active {
		if x.ID == tgt.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("target missing from active list")
	}

	if _, err := s.GetTarget(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestPostgresStore_SingleOpenInterval(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	tgt := addTarget(t, s)
	start := time.Now().UTC().Truncate(time.Millisecond)

	if err := s.CreateInterval(ctx, &domain.DowntimeInterval{TargetID: tgt.ID, Start: start, Reason: "HTTP 503"}); err != nil {
		t.Fatalf("CreateInterval: %v", err)
	}
	err := s.CreateInterval(ctx, &domain.DowntimeInterval{TargetID: tgt.ID, Start: start.Add(time.Second)})
	if !errors.Is(err, repo.ErrOpenIntervalExists) {
		t.Fatalf("want ErrOpenIntervalExists, got %v", err)
	}

	open, err := s.OpenInterval(ctx, tgt.ID)
	if err != nil || open == nil {
		t.Fatalf("OpenInterval: %v %v", open, err)
	}
	if err := s.CloseInterval(ctx, open.ID, start.Add(time.Minute)); err != nil {
		t.Fatalf("CloseInterval: %v", err)
	}
	if open, _ := s.OpenInterval(ctx, tgt.ID); open != nil {
		t.Fatalf("interval still open: %+v", open)
	}
	if err := s.CloseInterval(ctx, "missing", start); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	since, err := s.IntervalsSince(ctx, tgt.ID, start)
	if err != nil || len(since) != 1 {
		t.Fatalf("IntervalsSince: %v %v", since, err)
	}
	if since[0].Duration(time.Now()) != time.Minute {
		t.Fatalf("duration = %v", since[0].Duration(time.Now()))
	}
}

func TestPostgresStore_Predictions(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	tgt := addTarget(t, s)

	if _, err := s.LatestPrediction(ctx, tgt.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	now := time.Now().UTC()
	for i, payload := range []string{`{"risk_level":"low"}`, `{"risk_level":"high"}`} {
		p := &domain.PredictionRecord{TargetID: tgt.ID, CreatedAt: now.Add(time.Duration(i) * time.Second), Payload: []byte(payload)}
		if err := s.SavePrediction(ctx, p); err != nil {
			t.Fatalf("SavePrediction: %v", err)
		}
	}
	p, err := s.LatestPrediction(ctx, tgt.ID)
	if err != nil {
		t.Fatalf("LatestPrediction: %v", err)
	}
	if string(p.Payload) != `{"risk_level": "high"}` {
		t.Fatalf("payload = %s", p.Payload)
	}
}

func TestPostgresStore_OwnerLimits(t *testing.T) {
	s := newStore(t)
	tgt := addTarget(t, s)
	o, err := s.OwnerLimits(context.Background(), tgt.OwnerID)
	if err != nil {
		t.Fatalf("OwnerLimits: %v", err)
	}
	if o.PlanTier != domain.PlanProfessional || o.CheckInterval() != time.Minute {
		t.Fatalf("owner = %+v", o)
	}
	if _, err := s.OwnerLimits(context.Background(), "nobody"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
