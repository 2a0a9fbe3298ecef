package repository

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/audit/domain"
)

// MemoryRepository keeps audit logs in process memory.
type MemoryRepository struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func cloneLog(a *domain.AuditLog) *domain.AuditLog {
	c := *a
	c.Metadata = maps.Clone(a.Metadata)
	return &c
}

func (m *MemoryRepository) GetByID(_ context.Context, id string) (*domain.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.entries {
		if a.ID == id {
			return cloneLog(a), nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) ListByUser(_ context.Context, userID string, limit int) ([]*domain.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.AuditLog
	for _, a := range m.entries {
		if a.UserID == userID {
			out = append(out, cloneLog(a))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) Create(_ context.Context, a *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, cloneLog(a))
	return nil
}

// Actions returns the recorded actions in insertion order.
func (m *MemoryRepository) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, a := range m.entries {
		out[i] = a.Action
	}
	return out
}

// Entries returns copies of all recorded entries in insertion order.
func (m *MemoryRepository) Entries() []*domain.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.AuditLog, len(m.entries))
	for i, a := range m.entries {
		out[i] = cloneLog(a)
	}
	return out
}
