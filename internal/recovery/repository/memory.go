package repository

import (
	"context"
	"sync"
	"time"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/recovery/domain"
)

// MemoryRepository is a process-local Repository with the same single-use semantics as
// PostgresRepository.
type MemoryRepository struct {
	mu   sync.Mutex
	byID map[string]*domain.ResetToken
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*domain.ResetToken)}
}

func clone(t *domain.ResetToken) *domain.ResetToken {
	c := *t
	if t.ConsumedAt != nil {
		at := *t.ConsumedAt
		c.ConsumedAt = &at
	}
	return &c
}

func (m *MemoryRepository) Issue(_ context.Context, t *domain.ResetToken, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byID[t.ID]; dup {
		return ErrActiveTokenConflict
	}
	m.consumeAllLocked(t.UserID, at)
	m.byID[t.ID] = clone(t)
	return nil
}

func (m *MemoryRepository) GetActive(_ context.Context, userID string) (*domain.ResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byID {
		if t.UserID == userID && t.ConsumedAt == nil {
			return clone(t), nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) Consume(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok || t.ConsumedAt != nil {
		return false, nil
	}
	c := at
	t.ConsumedAt = &c
	return true, nil
}

func (m *MemoryRepository) ConsumeAllForUser(_ context.Context, userID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consumeAllLocked(userID, at), nil
}

func (m *MemoryRepository) consumeAllLocked(userID string, at time.Time) int64 {
	var n int64
	for _, t := range m.byID {
		if t.UserID == userID && t.ConsumedAt == nil {
			c := at
			t.ConsumedAt = &c
			n++
		}
	}
	return n
}
