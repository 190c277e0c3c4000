package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimewatch/internal/domain"
	"github.com/hamed0406/uptimewatch/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Schema is applied by Migrate. The partial unique index is the guard that
// keeps a target to at most one open downtime interval.
const Schema = `
CREATE TABLE IF NOT EXISTS owners (
  owner_id               TEXT PRIMARY KEY,
  email                  TEXT NOT NULL DEFAULT '',
  max_targets            INTEGER NOT NULL DEFAULT 0,
  check_interval_seconds INTEGER NOT NULL DEFAULT 300,
  plan_tier              TEXT NOT NULL DEFAULT 'free',
  subscription_status    TEXT NOT NULL DEFAULT '',
  subscription_expiry    TIMESTAMPTZ NULL
);

CREATE TABLE IF NOT EXISTS targets (
  id            TEXT PRIMARY KEY,
  owner_id      TEXT NOT NULL,
  name          TEXT NOT NULL DEFAULT '',
  url           TEXT NOT NULL,
  is_active     BOOLEAN NOT NULL DEFAULT TRUE,
  status        TEXT NOT NULL DEFAULT 'unknown',
  last_checked  TIMESTAMPTZ NULL,
  last_downtime TIMESTAMPTZ NULL,
  latency_ms    BIGINT NULL,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS checks (
  id         TEXT PRIMARY KEY,
  target_id  TEXT NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
  checked_at TIMESTAMPTZ NOT NULL,
  status     TEXT NOT NULL,
  latency_ms BIGINT NULL
);
CREATE INDEX IF NOT EXISTS idx_checks_target_time ON checks (target_id, checked_at DESC);

CREATE TABLE IF NOT EXISTS downtime_intervals (
  id         TEXT PRIMARY KEY,
  target_id  TEXT NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
  start_time TIMESTAMPTZ NOT NULL,
  end_time   TIMESTAMPTZ NULL,
  reason     TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_downtime_open ON downtime_intervals (target_id) WHERE end_time IS NULL;
CREATE INDEX IF NOT EXISTS idx_downtime_target_start ON downtime_intervals (target_id, start_time DESC);

CREATE TABLE IF NOT EXISTS predictions (
  id         TEXT PRIMARY KEY,
  target_id  TEXT NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
  created_at TIMESTAMPTZ NOT NULL,
  payload    JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_target_time ON predictions (target_id, created_at DESC);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables if they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	s.log.Info("schema_ready")
	return nil
}

// ---- Seeder ----

func (s *Store) AddTarget(ctx context.Context, t *domain.Target) error {
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = domain.StatusUnknown
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO targets (id, owner_id, name, url, is_active, status, last_checked, last_downtime, latency_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
  owner_id = EXCLUDED.owner_id, name = EXCLUDED.name, url = EXCLUDED.url, is_active = EXCLUDED.is_active`,
		string(t.ID), t.OwnerID, t.Name, t.URL, t.IsActive, string(t.Status),
		t.LastChecked, t.LastDowntime, t.LatencyMS, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	return nil
}

func (s *Store) PutOwner(ctx context.Context, o domain.OwnerLimits) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO owners (owner_id, email, max_targets, check_interval_seconds, plan_tier, subscription_status, subscription_expiry)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (owner_id) DO UPDATE SET
  email = EXCLUDED.email, max_targets = EXCLUDED.max_targets,
  check_interval_seconds = EXCLUDED.check_interval_seconds, plan_tier = EXCLUDED.plan_tier,
  subscription_status = EXCLUDED.subscription_status, subscription_expiry = EXCLUDED.subscription_expiry`,
		o.OwnerID, o.Email, o.MaxTargets, o.CheckIntervalSeconds, string(o.PlanTier),
		o.SubscriptionStatus, o.SubscriptionExpiry,
	)
	if err != nil {
		return fmt.Errorf("upsert owner: %w", err)
	}
	return nil
}

// ---- TargetStore ----

const targetColumns = `id, owner_id, name, url, is_active, status, last_checked, last_downtime, latency_ms, created_at`

func (s *Store) ListActive(ctx context.Context) ([]*domain.Target, error) {
	return s.listTargets(ctx, `SELECT `+targetColumns+` FROM targets WHERE is_active ORDER BY created_at, id`)
}

func (s *Store) ListTargets(ctx context.Context) ([]*domain.Target, error) {
	return s.listTargets(ctx, `SELECT `+targetColumns+` FROM targets ORDER BY created_at, id`)
}

func (s *Store) listTargets(ctx context.Context, query string) ([]*domain.Target, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []*domain.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetTarget(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+targetColumns+` FROM targets WHERE id = $1`, string(id))
	t, err := scanTarget(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return t, err
}

func scanTarget(row pgx.Row) (*domain.Target, error) {
	var (
		t      domain.Target
		id     string
		status string
	)
	err := row.Scan(&id, &t.OwnerID, &t.Name, &t.URL, &t.IsActive, &status,
		&t.LastChecked, &t.LastDowntime, &t.LatencyMS, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan target: %w", err)
	}
	t.ID = domain.TargetID(id)
	t.Status = domain.Status(status)
	return &t, nil
}

func (s *Store) RecordProbe(ctx context.Context, id domain.TargetID, status domain.Status, latencyMS *int64, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE targets SET status = $2, latency_ms = $3, last_checked = $4 WHERE id = $1`,
		string(id), string(status), latencyMS, at,
	)
	if err != nil {
		return fmt.Errorf("record probe: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) SetLastDowntime(ctx context.Context, id domain.TargetID, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE targets SET last_downtime = $2 WHERE id = $1`, string(id), at)
	if err != nil {
		return fmt.Errorf("set last downtime: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ---- CheckStore ----

func (s *Store) AppendCheck(ctx context.Context, c *domain.CheckRecord) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO checks (id, target_id, checked_at, status, latency_ms) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, string(c.TargetID), c.CheckedAt, string(c.Status), c.LatencyMS,
	)
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}
	return nil
}

func (s *Store) RecentChecks(ctx context.Context, id domain.TargetID, limit int) ([]domain.CheckRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, target_id, checked_at, status, latency_ms
  FROM checks
 WHERE target_id = $1
 ORDER BY checked_at DESC
 LIMIT $2`, string(id), limit)
	if err != nil {
		return nil, fmt.Errorf("recent checks: %w", err)
	}
	defer rows.Close()

	var out []domain.CheckRecord
	for rows.Next() {
		var (
			c        domain.CheckRecord
			targetID string
			status   string
		)
		if err := rows.Scan(&c.ID, &targetID, &c.CheckedAt, &status, &c.LatencyMS); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		c.TargetID = domain.TargetID(targetID)
		c.Status = domain.Status(status)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ---- DowntimeStore ----

const intervalColumns = `id, target_id, start_time, end_time, reason`

func (s *Store) OpenInterval(ctx context.Context, id domain.TargetID) (*domain.DowntimeInterval, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+intervalColumns+` FROM downtime_intervals WHERE target_id = $1 AND end_time IS NULL`,
		string(id))
	d, err := scanInterval(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) CreateInterval(ctx context.Context, d *domain.DowntimeInterval) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO downtime_intervals (id, target_id, start_time, end_time, reason) VALUES ($1, $2, $3, $4, $5)`,
		d.ID, string(d.TargetID), d.Start, d.End, d.Reason,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repo.ErrOpenIntervalExists
	}
	if err != nil {
		return fmt.Errorf("insert interval: %w", err)
	}
	return nil
}

// CloseInterval leaves an already closed interval untouched.
func (s *Store) CloseInterval(ctx context.Context, intervalID string, end time.Time) error {
	var found bool
	err := s.pool.QueryRow(ctx, `
WITH upd AS (
  UPDATE downtime_intervals SET end_time = $2 WHERE id = $1 AND end_time IS NULL RETURNING id
)
SELECT EXISTS (SELECT 1 FROM downtime_intervals WHERE id = $1)`, intervalID, end).Scan(&found)
	if err != nil {
		return fmt.Errorf("close interval: %w", err)
	}
	if !found {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) RecentIntervals(ctx context.Context, id domain.TargetID, limit int) ([]domain.DowntimeInterval, error) {
	return s.queryIntervals(ctx,
		`SELECT `+intervalColumns+` FROM downtime_intervals WHERE target_id = $1 ORDER BY start_time DESC LIMIT $2`,
		string(id), limit)
}

func (s *Store) IntervalsSince(ctx context.Context, id domain.TargetID, since time.Time) ([]domain.DowntimeInterval, error) {
	return s.queryIntervals(ctx,
		`SELECT `+intervalColumns+` FROM downtime_intervals
		  WHERE target_id = $1 AND (end_time IS NULL OR end_time >= $2)
		  ORDER BY start_time`,
		string(id), since)
}

func (s *Store) queryIntervals(ctx context.Context, query string, args ...any) ([]domain.DowntimeInterval, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query intervals: %w", err)
	}
	defer rows.Close()

	var out []domain.DowntimeInterval
	for rows.Next() {
		d, err := scanInterval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanInterval(row pgx.Row) (domain.DowntimeInterval, error) {
	var (
		d        domain.DowntimeInterval
		targetID string
	)
	err := row.Scan(&d.ID, &targetID, &d.Start, &d.End, &d.Reason)
	if errors.Is(err, pgx.ErrNoRows) {
		return d, err
	}
	if err != nil {
		return d, fmt.Errorf("scan interval: %w", err)
	}
	d.TargetID = domain.TargetID(targetID)
	return d, nil
}

// ---- PredictionStore ----

func (s *Store) SavePrediction(ctx context.Context, p *domain.PredictionRecord) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO predictions (id, target_id, created_at, payload) VALUES ($1, $2, $3, $4::jsonb)`,
		p.ID, string(p.TargetID), p.CreatedAt, string(p.Payload),
	)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

func (s *Store) LatestPrediction(ctx context.Context, id domain.TargetID) (*domain.PredictionRecord, error) {
	var (
		p        domain.PredictionRecord
		targetID string
		payload  []byte
	)
	err := s.pool.QueryRow(ctx, `
SELECT id, target_id, created_at, payload
  FROM predictions
 WHERE target_id = $1
 ORDER BY created_at DESC
 LIMIT 1`, string(id)).Scan(&p.ID, &targetID, &p.CreatedAt, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest prediction: %w", err)
	}
	p.TargetID = domain.TargetID(targetID)
	p.Payload = payload
	return &p, nil
}

// ---- OwnerLimitsProvider ----

func (s *Store) OwnerLimits(ctx context.Context, ownerID string) (domain.OwnerLimits, error) {
	var (
		o    domain.OwnerLimits
		plan string
	)
	err := s.pool.QueryRow(ctx, `
SELECT owner_id, email, max_targets, check_interval_seconds, plan_tier, subscription_status, subscription_expiry
  FROM owners
 WHERE owner_id = $1`, ownerID).Scan(&o.OwnerID, &o.Email, &o.MaxTargets, &o.CheckIntervalSeconds,
		&plan, &o.SubscriptionStatus, &o.SubscriptionExpiry)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.OwnerLimits{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.OwnerLimits{}, fmt.Errorf("owner limits: %w", err)
	}
	o.PlanTier = domain.PlanTier(plan)
	return o, nil
}
