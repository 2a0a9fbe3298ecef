package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/user/domain"
)

// MemoryRepository is an in-process user Repository for tests and local runs.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]*domain.User
	email map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: map[string]*domain.User{}, email: map[string]string{}}
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	c.Roles = slices.Clone(u.Roles)
	slices.Sort(c.Roles)
	return &c
}

func (m *MemoryRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.byID[id]; ok {
		return copyUser(u), nil
	}
	return nil, nil
}

func (m *MemoryRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.email[domain.NormalizeEmail(email)]; ok {
		return copyUser(m.byID[id]), nil
	}
	return nil, nil
}

func (m *MemoryRepository) Create(_ context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.email[u.Email]; taken {
		return ErrEmailTaken
	}
	m.byID[u.ID] = copyUser(u)
	m.email[u.Email] = u.ID
	return nil
}

func (m *MemoryRepository) Update(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.byID[u.ID]; ok {
		c := copyUser(u)
		c.Email = prev.Email
		m.byID[u.ID] = c
	}
	return nil
}
