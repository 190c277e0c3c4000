package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/uptimewatch/internal/domain"
	"github.com/hamed0406/uptimewatch/internal/repo"
)

// Store keeps everything in process memory. Reads hand out copies so
// callers never share state with the store.
type Store struct {
	mu          sync.RWMutex
	order       []domain.TargetID
	targets     map[domain.TargetID]*domain.Target
	owners      map[string]domain.OwnerLimits
	checks      map[domain.TargetID][]domain.CheckRecord
	intervals   map[domain.TargetID][]domain.DowntimeInterval
	predictions map[domain.TargetID][]domain.PredictionRecord
}

func New() *Store {
	return &Store{
		targets:     make(map[domain.TargetID]*domain.Target),
		owners:      make(map[string]domain.OwnerLimits),
		checks:      make(map[domain.TargetID][]domain.CheckRecord),
		intervals:   make(map[domain.TargetID][]domain.DowntimeInterval),
		predictions: make(map[domain.TargetID][]domain.PredictionRecord),
	}
}

// ---- Seeder ----

func (m *Store) AddTarget(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = domain.StatusUnknown
	}
	if _, ok := m.targets[t.ID]; !ok {
		m.order = append(m.order, t.ID)
	}
	cp := *t
	m.targets[t.ID] = &cp
	return nil
}

func (m *Store) PutOwner(ctx context.Context, o domain.OwnerLimits) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[o.OwnerID] = o
	return nil
}

// ---- TargetStore ----

func (m *Store) ListActive(ctx context.Context) ([]*domain.Target, error) {
	return m.list(true), nil
}

func (m *Store) ListTargets(ctx context.Context) ([]*domain.Target, error) {
	return m.list(false), nil
}

func (m *Store) list(activeOnly bool) []*domain.Target {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Target, 0, len(m.order))
	for _, id := range m.order {
		t := m.targets[id]
		if activeOnly && !t.IsActive {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out
}

func (m *Store) GetTarget(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Store) RecordProbe(ctx context.Context, id domain.TargetID, status domain.Status, latencyMS *int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = status
	t.LatencyMS = latencyMS
	t.LastChecked = &at
	return nil
}

func (m *Store) SetLastDowntime(ctx context.Context, id domain.TargetID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.LastDowntime = &at
	return nil
}

// ---- CheckStore ----

func (m *Store) AppendCheck(ctx context.Context, c *domain.CheckRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.checks[c.TargetID] = append(m.checks[c.TargetID], *c)
	return nil
}

func (m *Store) RecentChecks(ctx context.Context, id domain.TargetID, limit int) ([]domain.CheckRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.checks[id]
	out := make([]domain.CheckRecord, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// ---- DowntimeStore ----

func (m *Store) OpenInterval(ctx context.Context, id domain.TargetID) (*domain.DowntimeInterval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.intervals[id] {
		if d.Open() {
			cp := d
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Store) CreateInterval(ctx context.Context, d *domain.DowntimeInterval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.intervals[d.TargetID] {
		if cur.Open() {
			return repo.ErrOpenIntervalExists
		}
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	m.intervals[d.TargetID] = append(m.intervals[d.TargetID], *d)
	return nil
}

func (m *Store) CloseInterval(ctx context.Context, intervalID string, end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tid, list := range m.intervals {
		for i := range list {
			if list[i].ID == intervalID {
				if list[i].End == nil {
					e := end
					m.intervals[tid][i].End = &e
				}
				return nil
			}
		}
	}
	return domain.ErrNotFound
}

func (m *Store) RecentIntervals(ctx context.Context, id domain.TargetID, limit int) ([]domain.DowntimeInterval, error) {
	m.mu.RLock()
	all := append([]domain.DowntimeInterval(nil), m.intervals[id]...)
	m.mu.RUnlock()
	sort.SliceStable(all, func(i, j int) bool { return all[i].Start.After(all[j].Start) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *Store) IntervalsSince(ctx context.Context, id domain.TargetID, since time.Time) ([]domain.DowntimeInterval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.DowntimeInterval
	for _, d := range m.intervals[id] {
		if d.End == nil || !d.End.Before(since) {
			out = append(out, d)
		}
	}
	return out, nil
}

// ---- PredictionStore ----

func (m *Store) SavePrediction(ctx context.Context, p *domain.PredictionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	cp.Payload = append([]byte(nil), p.Payload...)
	m.predictions[p.TargetID] = append(m.predictions[p.TargetID], cp)
	return nil
}

func (m *Store) LatestPrediction(ctx context.Context, id domain.TargetID) (*domain.PredictionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.predictions[id]
	if len(list) == 0 {
		return nil, domain.ErrNotFound
	}
	cp := list[len(list)-1]
	return &cp, nil
}

// ---- OwnerLimitsProvider ----

func (m *Store) OwnerLimits(ctx context.Context, ownerID string) (domain.OwnerLimits, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.owners[ownerID]
	if !ok {
		return domain.OwnerLimits{}, domain.ErrNotFound
	}
	return o, nil
}

var _ repo.Store = (*Store)(nil)
