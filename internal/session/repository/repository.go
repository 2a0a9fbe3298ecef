package repository

import (
	"context"
	"errors"
	"time"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/session/domain"
)

// ErrSessionConflict is returned when a write loses a race: the predecessor of a rotation
// is no longer unrevoked, or a refresh token hash already exists.
var ErrSessionConflict = errors.New("session: conflicting concurrent update")

// Repository defines persistence for sessions. Lookups return (nil, nil) when no row matches.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	// Create inserts s. A duplicate RefreshTokenHash yields ErrSessionConflict.
	Create(ctx context.Context, s *domain.Session) error
	// Revoke sets revoked_at on the session if it is not already revoked and reports
	// whether a row changed.
	Revoke(ctx context.Context, id string, at time.Time) (bool, error)
	// RevokeAllActiveByUser revokes every unrevoked session of the user and returns the count.
	RevokeAllActiveByUser(ctx context.Context, userID string, at time.Time) (int64, error)
	// Rotate atomically inserts successor and marks predecessorID revoked and replaced by it.
	// If the predecessor was already revoked or replaced, nothing is written and
	// ErrSessionConflict is returned.
	Rotate(ctx context.Context, predecessorID string, successor *domain.Session, at time.Time) error
}
