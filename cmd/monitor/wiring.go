package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimewatch/internal/analysis"
	"github.com/hamed0406/uptimewatch/internal/clock"
	"github.com/hamed0406/uptimewatch/internal/config"
	"github.com/hamed0406/uptimewatch/internal/domain"
	"github.com/hamed0406/uptimewatch/internal/notify"
	"github.com/hamed0406/uptimewatch/internal/probe"
	"github.com/hamed0406/uptimewatch/internal/repo"
	"github.com/hamed0406/uptimewatch/internal/repo/memory"
	pg "github.com/hamed0406/uptimewatch/internal/repo/postgres"
	"github.com/hamed0406/uptimewatch/internal/repo/sqlstore"
)

const seedOwnerID = "local"

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.Store, func() error, error) {
	switch cfg.StoreDriver {
	case "postgres":
		s, err := pg.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres store: %w", err)
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, nil, err
		}
		logger.Info("store_ready", zap.String("driver", "postgres"))
		return s, func() error { s.Close(); return nil }, nil
	case sqlstore.DriverSQLite, sqlstore.DriverMySQL:
		s, err := sqlstore.Open(ctx, cfg.StoreDriver, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("%s store: %w", cfg.StoreDriver, err)
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		logger.Info("store_ready", zap.String("driver", cfg.StoreDriver))
		return s, s.Close, nil
	default:
		logger.Info("store_ready", zap.String("driver", "memory"))
		return memory.New(), func() error { return nil }, nil
	}
}

// seed registers SEED_TARGETS under one local owner. IDs derive from the
// URL so restarts against a database update rather than duplicate.
func seed(ctx context.Context, cfg config.Config, s repo.Seeder, logger *zap.Logger) error {
	if len(cfg.SeedTargets) == 0 {
		return nil
	}
	owner := domain.OwnerLimits{
		OwnerID:              seedOwnerID,
		Email:                cfg.SeedOwnerEmail,
		MaxTargets:           len(cfg.SeedTargets),
		CheckIntervalSeconds: cfg.SeedIntervalSeconds,
		PlanTier:             domain.PlanTier(cfg.SeedPlan),
		SubscriptionStatus:   "active",
	}
	if err := s.PutOwner(ctx, owner); err != nil {
		return fmt.Errorf("seed owner: %w", err)
	}
	for _, u := range cfg.SeedTargets {
		t := &domain.Target{
			ID:       domain.TargetID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(u)).String()),
			OwnerID:  seedOwnerID,
			Name:     u,
			URL:      u,
			IsActive: true,
		}
		if err := s.AddTarget(ctx, t); err != nil {
			return fmt.Errorf("seed target %s: %w", u, err)
		}
	}
	logger.Info("seeded_targets",
		zap.Int("count", len(cfg.SeedTargets)),
		zap.String("plan", cfg.SeedPlan),
		zap.Int("interval_seconds", cfg.SeedIntervalSeconds),
	)
	return nil
}

// buildChecker stacks HTTP probe, retries and optional DNS diagnosis.
func buildChecker(cfg config.Config, clk clock.Clock, logger *zap.Logger) probe.Checker {
	var c probe.Checker = probe.NewHTTPChecker(cfg.ProbeTimeout, cfg.ProbeMaxRedirects, cfg.ProbeUserAgent)
	if cfg.RetryAttempts > 1 {
		c = &probe.RetryChecker{Inner: c, Attempts: cfg.RetryAttempts, Backoff: cfg.RetryBackoff, Clock: clk}
	}
	if cfg.DNSDiagnosis {
		c = probe.NewDNSDiagnosis(c, logger)
	}
	return c
}

func buildNotifier(cfg config.Config) (notify.Notifier, func() error) {
	kafka := notify.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
	multi := notify.Multi{
		notify.NewSlack(cfg.SlackWebhook),
		notify.NewEmail(cfg.BrevoAPIKey, cfg.AlertFromEmail, cfg.AlertFromName, ""),
		kafka,
	}
	return multi, kafka.Close
}

// buildProvider prefers the LLM behind a circuit breaker and falls back to
// the rule engine when configured or when no API key is set.
func buildProvider(cfg config.Config, logger *zap.Logger) analysis.Provider {
	oa := analysis.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	if oa == nil {
		logger.Info("analysis_provider", zap.String("provider", "rules"))
		return analysis.Rules{}
	}
	primary := analysis.NewBreaker(oa, 5*time.Minute, logger)
	if !cfg.AnalysisFallback {
		logger.Info("analysis_provider", zap.String("provider", "openai"))
		return primary
	}
	logger.Info("analysis_provider", zap.String("provider", "openai+rules"))
	return &analysis.WithFallback{Primary: primary, Secondary: analysis.Rules{}, Logger: logger}
}
