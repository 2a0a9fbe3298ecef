package audit

import (
	"context"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/audit/domain"
	auditrepo "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/audit/repository"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/telemetry"
	telemetrydomain "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/telemetry/domain"
)

// eventSource tags security events published from the audit trail.
const eventSource = "auth"

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/resource. Used by the session
// lifecycle. LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, resource string, metadata map[string]string)
}

// Logger implements AuditLogger using the audit repository, an optional IP extractor and an
// optional event emitter.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	emitter     telemetry.EventEmitter
	now         func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor, now: time.Now}
}

// WithEmitter publishes every logged event to emitter as well. Returns l.
func (l *Logger) WithEmitter(emitter telemetry.EventEmitter) *Logger {
	l.emitter = emitter
	return l
}

// LogEvent writes one audit log entry and publishes it asynchronously. Best-effort: errors
// are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, userID, action, resource string, metadata map[string]string) {
	if l == nil || (l.repo == nil && l.emitter == nil) {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	entry := &domain.AuditLog{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  maps.Clone(metadata),
		CreatedAt: l.now().UTC(),
	}
	if l.repo != nil {
		if err := l.repo.Create(ctx, entry); err != nil {
			log.Error().Err(err).Str("action", action).Str("resource", resource).Msg("audit: failed to log event")
		}
	}
	telemetry.EmitAsync(ctx, l.emitter, &telemetrydomain.SecurityEvent{
		ID:         entry.ID,
		Type:       action,
		UserID:     userID,
		Resource:   resource,
		IP:         ip,
		Attributes: entry.Metadata,
		OccurredAt: entry.CreatedAt,
		Source:     eventSource,
	})
}
