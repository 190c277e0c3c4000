// Package sqlstore is a database/sql implementation of repo.Store for
// SQLite and MySQL. Times are written in UTC.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimewatch/internal/domain"
	"github.com/hamed0406/uptimewatch/internal/repo"
)

var _ repo.Store = (*Store)(nil)

const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

type dialect struct {
	schema      []string
	upsertTgt   string
	upsertOwner string
}

var sqliteDialect = dialect{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS owners (
  owner_id               TEXT PRIMARY KEY,
  email                  TEXT NOT NULL DEFAULT '',
  max_targets            INTEGER NOT NULL DEFAULT 0,
  check_interval_seconds INTEGER NOT NULL DEFAULT 300,
  plan_tier              TEXT NOT NULL DEFAULT 'free',
  subscription_status    TEXT NOT NULL DEFAULT '',
  subscription_expiry    DATETIME NULL
)`,
		`CREATE TABLE IF NOT EXISTS targets (
  id            TEXT PRIMARY KEY,
  owner_id      TEXT NOT NULL,
  name          TEXT NOT NULL DEFAULT '',
  url           TEXT NOT NULL,
  is_active     BOOLEAN NOT NULL DEFAULT 1,
  status        TEXT NOT NULL DEFAULT 'unknown',
  last_checked  DATETIME NULL,
  last_downtime DATETIME NULL,
  latency_ms    INTEGER NULL,
  created_at    DATETIME NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS checks (
  id         TEXT PRIMARY KEY,
  target_id  TEXT NOT NULL,
  checked_at DATETIME NOT NULL,
  status     TEXT NOT NULL,
  latency_ms INTEGER NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_checks_target_time ON checks (target_id, checked_at)`,
		`CREATE TABLE IF NOT EXISTS downtime_intervals (
  id         TEXT PRIMARY KEY,
  target_id  TEXT NOT NULL,
  start_time DATETIME NOT NULL,
  end_time   DATETIME NULL,
  reason     TEXT NOT NULL DEFAULT ''
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_downtime_open ON downtime_intervals (target_id) WHERE end_time IS NULL`,
		`CREATE TABLE IF NOT EXISTS predictions (
  id         TEXT PRIMARY KEY,
  target_id  TEXT NOT NULL,
  created_at DATETIME NOT NULL,
  payload    TEXT NOT NULL
)`,
	},
	upsertTgt: `INSERT INTO targets (id, owner_id, name, url, is_active, status, last_checked, last_downtime, latency_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
  owner_id = excluded.owner_id, name = excluded.name, url = excluded.url, is_active = excluded.is_active`,
	upsertOwner: `INSERT INTO owners (owner_id, email, max_targets, check_interval_seconds, plan_tier, subscription_status, subscription_expiry)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (owner_id) DO UPDATE SET
  email = excluded.email, max_targets = excluded.max_targets,
  check_interval_seconds = excluded.check_interval_seconds, plan_tier = excluded.plan_tier,
  subscription_status = excluded.subscription_status, subscription_expiry = excluded.subscription_expiry`,
}

// MySQL has no partial indexes; the generated open_target column is NULL
// once an interval closes, and NULLs never collide in a unique key.
var mysqlDialect = dialect{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS owners (
  owner_id               VARCHAR(64) PRIMARY KEY,
  email                  VARCHAR(255) NOT NULL DEFAULT '',
  max_targets            INT NOT NULL DEFAULT 0,
  check_interval_seconds INT NOT NULL DEFAULT 300,
  plan_tier              VARCHAR(32) NOT NULL DEFAULT 'free',
  subscription_status    VARCHAR(32) NOT NULL DEFAULT '',
  subscription_expiry    DATETIME(6) NULL
) DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS targets (
  id            VARCHAR(64) PRIMARY KEY,
  owner_id      VARCHAR(64) NOT NULL,
  name          VARCHAR(255) NOT NULL DEFAULT '',
  url           VARCHAR(2048) NOT NULL,
  is_active     TINYINT(1) NOT NULL DEFAULT 1,
  status        VARCHAR(16) NOT NULL DEFAULT 'unknown',
  last_checked  DATETIME(6) NULL,
  last_downtime DATETIME(6) NULL,
  latency_ms    BIGINT NULL,
  created_at    DATETIME(6) NOT NULL
) DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS checks (
  id         VARCHAR(64) PRIMARY KEY,
  target_id  VARCHAR(64) NOT NULL,
  checked_at DATETIME(6) NOT NULL,
  status     VARCHAR(16) NOT NULL,
  latency_ms BIGINT NULL,
  INDEX idx_checks_target_time (target_id, checked_at)
) DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS downtime_intervals (
  id          VARCHAR(64) PRIMARY KEY,
  target_id   VARCHAR(64) NOT NULL,
  start_time  DATETIME(6) NOT NULL,
  end_time    DATETIME(6) NULL,
  reason      VARCHAR(1024) NOT NULL DEFAULT '',
  open_target VARCHAR(64) AS (CASE WHEN end_time IS NULL THEN target_id END) STORED,
  UNIQUE KEY uq_downtime_open (open_target),
  INDEX idx_downtime_target_start (target_id, start_time)
) DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS predictions (
  id         VARCHAR(64) PRIMARY KEY,
  target_id  VARCHAR(64) NOT NULL,
  created_at DATETIME(6) NOT NULL,
  payload    LONGTEXT NOT NULL,
  INDEX idx_predictions_target_time (target_id, created_at)
) DEFAULT CHARSET=utf8mb4`,
	},
	upsertTgt: `INSERT INTO targets (id, owner_id, name, url, is_active, status, last_checked, last_downtime, latency_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  owner_id = VALUES(owner_id), name = VALUES(name), url = VALUES(url), is_active = VALUES(is_active)`,
	upsertOwner: `INSERT INTO owners (owner_id, email, max_targets, check_interval_seconds, plan_tier, subscription_status, subscription_expiry)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  email = VALUES(email), max_targets = VALUES(max_targets),
  check_interval_seconds = VALUES(check_interval_seconds), plan_tier = VALUES(plan_tier),
  subscription_status = VALUES(subscription_status), subscription_expiry = VALUES(subscription_expiry)`,
}

type Store struct {
	db      *sql.DB
	driver  string
	dialect dialect
	log     *zap.Logger
}

// Open connects with the named driver. MySQL DSNs need parseTime=true.
func Open(ctx context.Context, driver, dsn string, log *zap.Logger) (*Store, error) {
	var d dialect
	switch driver {
	case DriverSQLite:
		d = sqliteDialect
	case DriverMySQL:
		d = mysqlDialect
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		dsn = cfg.FormatDSN()
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One connection keeps :memory: databases shared and serialises writers.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(60 * time.Minute)
		db.SetConnMaxIdleTime(30 * time.Second)
	}

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctxPing); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return &Store{db: db, driver: driver, dialect: d, log: log}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the tables if they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	s.log.Info("schema_ready", zap.String("driver", s.driver))
	return nil
}

func (s *Store) isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return false
}

func utc(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
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
	_, err := s.db.ExecContext(ctx, s.dialect.upsertTgt,
		string(t.ID), t.OwnerID, t.Name, t.URL, t.IsActive, string(t.Status),
		utc(t.LastChecked), utc(t.LastDowntime), t.LatencyMS, t.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	return nil
}

func (s *Store) PutOwner(ctx context.Context, o domain.OwnerLimits) error {
	_, err := s.db.ExecContext(ctx, s.dialect.upsertOwner,
		o.OwnerID, o.Email, o.MaxTargets, o.CheckIntervalSeconds, string(o.PlanTier),
		o.SubscriptionStatus, utc(o.SubscriptionExpiry),
	)
	if err != nil {
		return fmt.Errorf("upsert owner: %w", err)
	}
	return nil
}

// ---- TargetStore ----

const targetColumns = `id, owner_id, name, url, is_active, status, last_checked, last_downtime, latency_ms, created_at`

func (s *Store) ListActive(ctx context.Context) ([]*domain.Target, error) {
	return s.listTargets(ctx, `SELECT `+targetColumns+` FROM targets WHERE is_active = ? ORDER BY created_at, id`, true)
}

func (s *Store) ListTargets(ctx context.Context) ([]*domain.Target, error) {
	return s.listTargets(ctx, `SELECT `+targetColumns+` FROM targets ORDER BY created_at, id`)
}

func (s *Store) listTargets(ctx context.Context, query string, args ...any) ([]*domain.Target, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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
	row := s.db.QueryRowContext(ctx, `SELECT `+targetColumns+` FROM targets WHERE id = ?`, string(id))
	t, err := scanTarget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return t, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTarget(row scanner) (*domain.Target, error) {
	var (
		t                     domain.Target
		id, status            string
		lastChecked, lastDown sql.NullTime
		latency               sql.NullInt64
	)
	err := row.Scan(&id, &t.OwnerID, &t.Name, &t.URL, &t.IsActive, &status,
		&lastChecked, &lastDown, &latency, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan target: %w", err)
	}
	t.ID = domain.TargetID(id)
	t.Status = domain.Status(status)
	t.LastChecked = timePtr(lastChecked)
	t.LastDowntime = timePtr(lastDown)
	t.LatencyMS = int64Ptr(latency)
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

func (s *Store) exec1(ctx context.Context, what, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) RecordProbe(ctx context.Context, id domain.TargetID, status domain.Status, latencyMS *int64, at time.Time) error {
	return s.exec1(ctx, "record probe",
		`UPDATE targets SET status = ?, latency_ms = ?, last_checked = ? WHERE id = ?`,
		string(status), latencyMS, at.UTC(), string(id))
}

func (s *Store) SetLastDowntime(ctx context.Context, id domain.TargetID, at time.Time) error {
	return s.exec1(ctx, "set last downtime",
		`UPDATE targets SET last_downtime = ? WHERE id = ?`, at.UTC(), string(id))
}

// ---- CheckStore ----

func (s *Store) AppendCheck(ctx context.Context, c *domain.CheckRecord) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checks (id, target_id, checked_at, status, latency_ms) VALUES (?, ?, ?, ?, ?)`,
		c.ID, string(c.TargetID), c.CheckedAt.UTC(), string(c.Status), c.LatencyMS,
	)
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}
	return nil
}

func (s *Store) RecentChecks(ctx context.Context, id domain.TargetID, limit int) ([]domain.CheckRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, target_id, checked_at, status, latency_ms
  FROM checks
 WHERE target_id = ?
 ORDER BY checked_at DESC
 LIMIT ?`, string(id), limit)
	if err != nil {
		return nil, fmt.Errorf("recent checks: %w", err)
	}
	defer rows.Close()

	var out []domain.CheckRecord
	for rows.Next() {
		var (
			c                domain.CheckRecord
			targetID, status string
			latency          sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &targetID, &c.CheckedAt, &status, &latency); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		c.TargetID = domain.TargetID(targetID)
		c.Status = domain.Status(status)
		c.CheckedAt = c.CheckedAt.UTC()
		c.LatencyMS = int64Ptr(latency)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ---- DowntimeStore ----

const intervalColumns = `id, target_id, start_time, end_time, reason`

func (s *Store) OpenInterval(ctx context.Context, id domain.TargetID) (*domain.DowntimeInterval, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+intervalColumns+` FROM downtime_intervals WHERE target_id = ? AND end_time IS NULL`, string(id))
	d, err := scanInterval(row)
	if errors.Is(err, sql.ErrNoRows) {
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
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO downtime_intervals (id, target_id, start_time, end_time, reason) VALUES (?, ?, ?, ?, ?)`,
		d.ID, string(d.TargetID), d.Start.UTC(), utc(d.End), d.Reason,
	)
	if err != nil && s.isUniqueViolation(err) {
		return repo.ErrOpenIntervalExists
	}
	if err != nil {
		return fmt.Errorf("insert interval: %w", err)
	}
	return nil
}

// CloseInterval leaves an already closed interval untouched.
func (s *Store) CloseInterval(ctx context.Context, intervalID string, end time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE downtime_intervals SET end_time = ? WHERE id = ? AND end_time IS NULL`, end.UTC(), intervalID)
	if err != nil {
		return fmt.Errorf("close interval: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	var one int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM downtime_intervals WHERE id = ?`, intervalID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("close interval: %w", err)
	}
	return nil
}

func (s *Store) RecentIntervals(ctx context.Context, id domain.TargetID, limit int) ([]domain.DowntimeInterval, error) {
	return s.queryIntervals(ctx,
		`SELECT `+intervalColumns+` FROM downtime_intervals WHERE target_id = ? ORDER BY start_time DESC LIMIT ?`,
		string(id), limit)
}

func (s *Store) IntervalsSince(ctx context.Context, id domain.TargetID, since time.Time) ([]domain.DowntimeInterval, error) {
	return s.queryIntervals(ctx,
		`SELECT `+intervalColumns+` FROM downtime_intervals
		  WHERE target_id = ? AND (end_time IS NULL OR end_time >= ?)
		  ORDER BY start_time`,
		string(id), since.UTC())
}

func (s *Store) queryIntervals(ctx context.Context, query string, args ...any) ([]domain.DowntimeInterval, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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

func scanInterval(row scanner) (domain.DowntimeInterval, error) {
	var (
		d        domain.DowntimeInterval
		targetID string
		end      sql.NullTime
	)
	err := row.Scan(&d.ID, &targetID, &d.Start, &end, &d.Reason)
	if errors.Is(err, sql.ErrNoRows) {
		return d, err
	}
	if err != nil {
		return d, fmt.Errorf("scan interval: %w", err)
	}
	d.TargetID = domain.TargetID(targetID)
	d.Start = d.Start.UTC()
	d.End = timePtr(end)
	return d, nil
}

// ---- PredictionStore ----

func (s *Store) SavePrediction(ctx context.Context, p *domain.PredictionRecord) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO predictions (id, target_id, created_at, payload) VALUES (?, ?, ?, ?)`,
		p.ID, string(p.TargetID), p.CreatedAt.UTC(), string(p.Payload),
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
		payload  string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, target_id, created_at, payload
  FROM predictions
 WHERE target_id = ?
 ORDER BY created_at DESC
 LIMIT 1`, string(id)).Scan(&p.ID, &targetID, &p.CreatedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest prediction: %w", err)
	}
	p.TargetID = domain.TargetID(targetID)
	p.CreatedAt = p.CreatedAt.UTC()
	p.Payload = []byte(payload)
	return &p, nil
}

// ---- OwnerLimitsProvider ----

func (s *Store) OwnerLimits(ctx context.Context, ownerID string) (domain.OwnerLimits, error) {
	var (
		o      domain.OwnerLimits
		plan   string
		expiry sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
SELECT owner_id, email, max_targets, check_interval_seconds, plan_tier, subscription_status, subscription_expiry
  FROM owners
 WHERE owner_id = ?`, ownerID).Scan(&o.OwnerID, &o.Email, &o.MaxTargets, &o.CheckIntervalSeconds,
		&plan, &o.SubscriptionStatus, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.OwnerLimits{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.OwnerLimits{}, fmt.Errorf("owner limits: %w", err)
	}
	o.PlanTier = domain.PlanTier(plan)
	o.SubscriptionExpiry = timePtr(expiry)
	return o, nil
}
