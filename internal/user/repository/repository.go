package repository

import (
	"context"
	"errors"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/user/domain"
)

// ErrEmailTaken is returned by Create when another user owns the email.
var ErrEmailTaken = errors.New("user: email already registered")

// Repository defines persistence for users and their roles.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
}
