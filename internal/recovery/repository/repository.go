package repository

import (
	"context"
	"errors"
	"time"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/recovery/domain"
)

// ErrActiveTokenConflict is returned by Issue when a concurrent Issue for the same user
// inserted its token first.
var ErrActiveTokenConflict = errors.New("recovery: another code was issued concurrently")

// Repository persists recovery codes. A user has at most one unconsumed code.
type Repository interface {
	// Issue consumes the user's unconsumed codes and inserts t in one step.
	Issue(ctx context.Context, t *domain.ResetToken, at time.Time) error
	// GetActive returns the user's unconsumed code, or (nil, nil) if there is none. The code
	// may be expired.
	GetActive(ctx context.Context, userID string) (*domain.ResetToken, error)
	// Consume marks the code used unless it already is, and reports whether a row changed.
	Consume(ctx context.Context, id string, at time.Time) (bool, error)
	// ConsumeAllForUser burns every unconsumed code of the user and returns the count.
	ConsumeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error)
}
