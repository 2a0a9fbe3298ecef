package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/session/domain"
)

// MemoryRepository is a process-local Repository with the same conflict semantics as
// PostgresRepository. Used for tests and single-node development.
type MemoryRepository struct {
	mu     sync.Mutex
	byID   map[string]*domain.Session
	byHash map[string]string
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:   make(map[string]*domain.Session),
		byHash: make(map[string]string),
	}
}

func clone(s *domain.Session) *domain.Session {
	c := *s
	if s.RevokedAt != nil {
		t := *s.RevokedAt
		c.RevokedAt = &t
	}
	if s.ReplacedBySessionID != nil {
		id := *s.ReplacedBySessionID
		c.ReplacedBySessionID = &id
	}
	return &c
}

func (m *MemoryRepository) GetByID(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return clone(s), nil
}

func (m *MemoryRepository) GetByRefreshTokenHash(_ context.Context, hash string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byHash[hash]
	if !ok {
		return nil, nil
	}
	return clone(m.byID[id]), nil
}

func (m *MemoryRepository) ListByUser(_ context.Context, userID string) ([]*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Session
	for _, s := range m.byID {
		if s.UserID == userID {
			out = append(out, clone(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryRepository) Create(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(s)
}

func (m *MemoryRepository) insertLocked(s *domain.Session) error {
	if _, dup := m.byHash[s.RefreshTokenHash]; dup {
		return ErrSessionConflict
	}
	if _, dup := m.byID[s.ID]; dup {
		return ErrSessionConflict
	}
	m.byID[s.ID] = clone(s)
	m.byHash[s.RefreshTokenHash] = s.ID
	return nil
}

func (m *MemoryRepository) Revoke(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok || s.RevokedAt != nil {
		return false, nil
	}
	t := at
	s.RevokedAt = &t
	return true, nil
}

func (m *MemoryRepository) RevokeAllActiveByUser(_ context.Context, userID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.byID {
		if s.UserID == userID && s.RevokedAt == nil {
			t := at
			s.RevokedAt = &t
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) Rotate(_ context.Context, predecessorID string, successor *domain.Session, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.byID[predecessorID]
	if !ok || prev.IsTerminal() {
		return ErrSessionConflict
	}
	if err := m.insertLocked(successor); err != nil {
		return err
	}
	t := at
	next := successor.ID
	prev.RevokedAt = &t
	prev.ReplacedBySessionID = &next
	return nil
}
