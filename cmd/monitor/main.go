package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimewatch/internal/clock"
	"github.com/hamed0406/uptimewatch/internal/config"
	"github.com/hamed0406/uptimewatch/internal/httpapi"
	apimw "github.com/hamed0406/uptimewatch/internal/httpapi/middleware"
	"github.com/hamed0406/uptimewatch/internal/logging"
	"github.com/hamed0406/uptimewatch/internal/metrics"
	"github.com/hamed0406/uptimewatch/internal/scheduler"
)

// drainTimeout covers a full probe timeout with retries and stagger.
const drainTimeout = 2 * time.Minute

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(logging.Options{Dir: cfg.LogDir, Level: cfg.LogLevel, Stdout: cfg.LogStdout})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("monitor_exit", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) (err error) {
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeStore()) }()

	if err := seed(ctx, cfg, store, logger); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	clk := clock.Real{}
	notifier, closeNotifier := buildNotifier(cfg)
	defer func() { err = multierr.Append(err, closeNotifier()) }()

	ledger := &scheduler.Ledger{Targets: store, Downtime: store, ReasonMax: cfg.DowntimeReasonMax}
	driver := &scheduler.Driver{
		Logger:  logger,
		Clock:   clk,
		Targets: store,
		Owners:  store,
		Checker: buildChecker(cfg, clk, logger),
		Tracker: &scheduler.Tracker{Targets: store, Checks: store, State: scheduler.NewMemoryState()},
		Ledger:  ledger,
		Alerter: &scheduler.Alerter{Notifier: notifier, Logger: logger, Metrics: m},
		Dispatcher: &scheduler.Dispatcher{
			Clock:          clk,
			Delay:          cfg.StaggerDelay,
			MaxConcurrency: cfg.MaxConcurrentProbes,
			Logger:         logger,
		},
		Metrics:  m,
		Interval: cfg.CycleInterval,
		Anchor:   scheduler.Anchor(cfg.CycleAnchor),
	}

	api := httpapi.NewServer(logger, clk, store, ledger, driver, reg)
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: api.Router(httpapi.RouterOptions{
			Keys:           apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys},
			AllowedOrigins: cfg.AllowedOrigins,
			RatePerMin:     cfg.RatePerMin,
			RateBurst:      cfg.RateBurst,
			TrustedProxies: cfg.TrustedProxyPrefixes(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	loopCtx, cancelLoops := context.WithCancel(ctx)
	defer cancelLoops()

	var wg conc.WaitGroup
	wg.Go(func() { driver.Run(loopCtx) })
	if cfg.AnalysisEnabled {
		analyzer := &scheduler.AnalysisScheduler{
			Logger:      logger,
			Clock:       clk,
			Targets:     store,
			Owners:      store,
			Checks:      store,
			Downtime:    store,
			Predictions: store,
			Provider:    buildProvider(cfg, logger),
			Metrics:     m,
			Warmup:      cfg.AnalysisWarmup,
			Interval:    cfg.AnalysisInterval,
			Spacing:     cfg.AnalysisSpacing,
		}
		wg.Go(func() { analyzer.Run(loopCtx) })
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		logger.Error("api_failed", zap.Error(err))
	}

	logger.Info("shutdown_started")
	cancelLoops()
	// scheduled or manual cycle and the analysis call finish before the
	// store closes; manual triggers arriving meanwhile get 503
	drainCtx, cancelDrain := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancelDrain()
	err = multierr.Append(err, driver.Drain(drainCtx))
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	err = multierr.Append(err, srv.Shutdown(shutdownCtx))
	logger.Info("shutdown_complete")
	return err
}
