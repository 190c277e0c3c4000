package scheduler

import (
	"sync"

	"github.com/hamed0406/uptimewatch/internal/domain"
)

// StateStore holds the last observed status per target between cycles.
type StateStore interface {
	Get(id domain.TargetID) (domain.Status, bool)
	Set(id domain.TargetID, s domain.Status)
}

// MemoryState is safe for the concurrent probes of one cycle.
type MemoryState struct {
	mu sync.RWMutex
	m  map[domain.TargetID]domain.Status
}

func NewMemoryState() *MemoryState {
	return &MemoryState{m: make(map[domain.TargetID]domain.Status)}
}

func (c *MemoryState) Get(id domain.TargetID) (domain.Status, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.m[id]
	return s, ok
}

func (c *MemoryState) Set(id domain.TargetID, s domain.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[id] = s
}
