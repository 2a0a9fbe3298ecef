package repository

import (
	"context"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.AuditLog, error)
	// ListByUser returns the newest entries first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.AuditLog, error)
	Create(ctx context.Context, a *domain.AuditLog) error
}
