// Package producer publishes security events to a message broker.
package producer

import (
	"context"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/telemetry/domain"
)

// Producer emits security events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	Emit(ctx context.Context, event *domain.SecurityEvent) error
	// Close releases resources. Safe to call if already closed.
	Close() error
}
