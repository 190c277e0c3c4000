package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimewatch/internal/clock"
	"github.com/hamed0406/uptimewatch/internal/domain"
	apimw "github.com/hamed0406/uptimewatch/internal/httpapi/middleware"
	"github.com/hamed0406/uptimewatch/internal/repo"
	"github.com/hamed0406/uptimewatch/internal/scheduler"
)

const (
	defaultUptimeWindow = 30 * 24 * time.Hour
	maxUptimeWindow     = 365 * 24 * time.Hour
	defaultListLimit    = 50
	maxListLimit        = 1000
)

// Cycles is the part of the cycle driver the API exposes.
type Cycles interface {
	RunCycle(ctx context.Context) (scheduler.CycleSummary, error)
	LastSummary() (scheduler.CycleSummary, bool)
}

// Store is what the read endpoints need from persistence.
type Store interface {
	repo.TargetStore
	repo.CheckStore
	repo.DowntimeStore
	repo.PredictionStore
}

type Server struct {
	Logger   *zap.Logger
	Clock    clock.Clock
	Store    Store
	Ledger   *scheduler.Ledger
	Cycles   Cycles
	Gatherer prometheus.Gatherer
}

type RouterOptions struct {
	Keys           apimw.Keys
	AllowedOrigins []string // empty allows all
	RatePerMin     int
	RateBurst      int
	TrustedProxies []netip.Prefix
}

func NewServer(l *zap.Logger, clk clock.Clock, store Store, ledger *scheduler.Ledger, cycles Cycles, g prometheus.Gatherer) *Server {
	return &Server{Logger: l, Clock: clk, Store: store, Ledger: ledger, Cycles: cycles, Gatherer: g}
}

func (s *Server) Router(opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLog)
	if len(opts.AllowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.RateLimit(apimw.RateLimitOptions{
			PerMin:         opts.RatePerMin,
			Burst:          opts.RateBurst,
			Keys:           opts.Keys,
			TrustedProxies: opts.TrustedProxies,
		}))
		r.Use(apimw.RequireAny(opts.Keys))

		r.Get("/targets", s.handleListTargets)
		r.Get("/targets/{id}", s.handleGetTarget)
		r.Get("/targets/{id}/uptime", s.handleUptime)
		r.Get("/targets/{id}/checks", s.handleChecks)
		r.Get("/targets/{id}/downtime", s.handleDowntime)
		r.Get("/targets/{id}/prediction", s.handlePrediction)

		r.Get("/cycle", s.handleLastCycle)
		r.With(apimw.RequireAdmin(opts.Keys)).Post("/cycle", s.handleRunCycle)
	})
	return r
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Debug("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Store.ListTargets(r.Context())
	if err != nil {
		s.Logger.Warn("list_targets_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	if ts == nil {
		ts = []*domain.Target{}
	}
	writeJSON(w, http.StatusOK, ts)
}

// target loads {id} and writes the error response itself when it fails.
func (s *Server) target(w http.ResponseWriter, r *http.Request) (*domain.Target, bool) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	t, err := s.Store.GetTarget(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "target not found")
		return nil, false
	case err != nil:
		s.Logger.Warn("get_target_failed", zap.String("target_id", string(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup error")
		return nil, false
	}
	return t, true
}

func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	if t, ok := s.target(w, r); ok {
		writeJSON(w, http.StatusOK, t)
	}
}

func (s *Server) handleUptime(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r.URL.Query().Get("window"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	st, err := s.Ledger.Uptime(r.Context(), t.ID, s.Clock.Now(), window)
	if err != nil {
		s.Logger.Warn("uptime_failed", zap.String("target_id", string(t.ID)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "uptime error")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleChecks(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	checks, err := s.Store.RecentChecks(r.Context(), t.ID, limit)
	if err != nil {
		s.Logger.Warn("recent_checks_failed", zap.String("target_id", string(t.ID)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "checks error")
		return
	}
	if checks == nil {
		checks = []domain.CheckRecord{}
	}
	writeJSON(w, http.StatusOK, checks)
}

func (s *Server) handleDowntime(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	list, err := s.Store.RecentIntervals(r.Context(), t.ID, limit)
	if err != nil {
		s.Logger.Warn("recent_intervals_failed", zap.String("target_id", string(t.ID)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "downtime error")
		return
	}
	if list == nil {
		list = []domain.DowntimeInterval{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	p, err := s.Store.LatestPrediction(r.Context(), t.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "no prediction yet")
		return
	case err != nil:
		s.Logger.Warn("latest_prediction_failed", zap.String("target_id", string(t.ID)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "prediction error")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleLastCycle(w http.ResponseWriter, r *http.Request) {
	sum, ok := s.Cycles.LastSummary()
	if !ok {
		writeError(w, http.StatusNotFound, "no cycle completed yet")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleRunCycle triggers an out-of-band cycle. It never overlaps the
// scheduled one and keeps running if the client goes away.
func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	sum, err := s.Cycles.RunCycle(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, scheduler.ErrCycleInProgress):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// parseWindow accepts Go durations ("72h") and whole days ("30d").
func parseWindow(raw string) (time.Duration, error) {
	if raw == "" {
		return defaultUptimeWindow, nil
	}
	var (
		d   time.Duration
		err error
	)
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		var n int
		n, err = strconv.Atoi(days)
		if n <= 0 || time.Duration(n) > maxUptimeWindow/(24*time.Hour) {
			err = errors.New("days out of range")
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		d, err = time.ParseDuration(raw)
	}
	if err != nil || d <= 0 || d > maxUptimeWindow {
		return 0, errors.New("window must be a positive duration up to 365d")
	}
	return d, nil
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(n, maxListLimit), nil
}
