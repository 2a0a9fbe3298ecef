package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/telemetry/domain"
)

// emitTimeout is the max time allowed for a single async emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the servers stop before shutting down
// OTel providers and the Kafka writer, so in-flight async emits can finish. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine so the caller is not blocked. Errors are logged.
// emitter and event may be nil. The goroutine detaches from ctx's cancellation but keeps
// its values, so a finished request does not abort the emit.
func EmitAsync(ctx context.Context, emitter EventEmitter, event *domain.SecurityEvent) {
	if emitter == nil || event == nil {
		return
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			log.Warn().Err(err).Str("event", event.Type).Msg("telemetry: async emit failed")
		}
	}()
}
