package repository

import (
	"context"
	"sync"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/identity/domain"
)

// MemoryRepository is an in-process identity Repository for tests and local runs.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]*domain.Identity
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: map[string]*domain.Identity{}}
}

func (m *MemoryRepository) GetByUserAndProvider(_ context.Context, userID string, provider domain.IdentityProvider) (*domain.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, i := range m.byID {
		if i.UserID == userID && i.Provider == provider {
			c := *i
			return &c, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) Create(_ context.Context, i *domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *i
	m.byID[i.ID] = &c
	return nil
}

func (m *MemoryRepository) UpdatePasswordHash(_ context.Context, id string, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.byID[id]; ok {
		i.PasswordHash = passwordHash
	}
	return nil
}
