package repository

import (
	"context"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/identity/domain"
)

// Repository defines persistence for identities.
type Repository interface {
	GetByUserAndProvider(ctx context.Context, userID string, provider domain.IdentityProvider) (*domain.Identity, error)
	Create(ctx context.Context, i *domain.Identity) error
	UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error
}
