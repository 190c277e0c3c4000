package main

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimewatch/internal/analysis"
	"github.com/hamed0406/uptimewatch/internal/clock"
	"github.com/hamed0406/uptimewatch/internal/config"
	"github.com/hamed0406/uptimewatch/internal/domain"
	"github.com/hamed0406/uptimewatch/internal/notify"
	"github.com/hamed0406/uptimewatch/internal/probe"
	"github.com/hamed0406/uptimewatch/internal/repo/memory"
)

func TestSeed_IsIdempotent(t *testing.T) {
	cfg := config.Config{
		SeedTargets:         []string{"https://a.example", "https://b.example"},
		SeedIntervalSeconds: 60,
		SeedPlan:            "professional",
		SeedOwnerEmail:      "ops@example.com",
	}
	store := memory.New()
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := seed(ctx, cfg, store, zap.NewNop()); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	ts, _ := store.ListActive(ctx)
	if len(ts) != 2 {
		t.Fatalf("want 2 targets after reseeding, got %d", len(ts))
	}
	o, err := store.OwnerLimits(ctx, seedOwnerID)
	if err != nil {
		t.Fatalf("OwnerLimits: %v", err)
	}
	if !o.PlanTier.PredictiveAnalysis() || o.CheckInterval() != time.Minute || o.Email != "ops@example.com" {
		t.Fatalf("owner = %+v", o)
	}
	if !o.SubscriptionValid(time.Now()) {
		t.Fatalf("seeded owner should be valid")
	}
	if ts[0].Status != domain.StatusUnknown {
		t.Fatalf("seeded status = %q", ts[0].Status)
	}
}

func TestBuildChecker_Layers(t *testing.T) {
	cfg := config.Config{ProbeTimeout: time.Second, RetryAttempts: 1}
	if _, ok := buildChecker(cfg, clock.Real{}, zap.NewNop()).(*probe.HTTPChecker); !ok {
		t.Fatalf("plain config should give the HTTP checker")
	}
	cfg.RetryAttempts = 3
	if _, ok := buildChecker(cfg, clock.Real{}, zap.NewNop()).(*probe.RetryChecker); !ok {
		t.Fatalf("retries should wrap the HTTP checker")
	}
	cfg.DNSDiagnosis = true
	if _, ok := buildChecker(cfg, clock.Real{}, zap.NewNop()).(*probe.DNSDiagnosis); !ok {
		t.Fatalf("dns diagnosis should be outermost")
	}
}

func TestBuildProvider(t *testing.T) {
	if _, ok := buildProvider(config.Config{}, zap.NewNop()).(analysis.Rules); !ok {
		t.Fatalf("no API key should give the rule engine")
	}
	cfg := config.Config{OpenAIAPIKey: "sk-test", AnalysisFallback: true}
	if _, ok := buildProvider(cfg, zap.NewNop()).(*analysis.WithFallback); !ok {
		t.Fatalf("fallback should wrap the LLM provider")
	}
	cfg.AnalysisFallback = false
	if _, ok := buildProvider(cfg, zap.NewNop()).(*analysis.Breaker); !ok {
		t.Fatalf("without fallback the breaker is the provider")
	}
}

func TestBuildNotifier_NoChannelsConfigured(t *testing.T) {
	n, closeFn := buildNotifier(config.Config{})
	if err := n.Send(context.Background(), notify.Message{Subject: "test"}); err != nil {
		t.Fatalf("unconfigured channels should be no-ops: %v", err)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
