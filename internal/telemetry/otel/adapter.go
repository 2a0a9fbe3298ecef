package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/telemetry"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/telemetry/domain"
)

const instrumentationName = "aphinity.security"

// RecordEmitter is the part of an OTel Logger used by the event emitter.
type RecordEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given
// LoggerProvider. If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return NewEventEmitterWithLogger(provider.Logger(instrumentationName))
}

// NewEventEmitterWithLogger returns an EventEmitter writing to logger.
func NewEventEmitterWithLogger(logger RecordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.SecurityEvent) error { return nil }

type otelEmitter struct {
	logger RecordEmitter
}

// Emit converts the event to an OTel log record: event type as body, the rest as attributes.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.SecurityEvent) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	ts := event.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetSeverity(severityOf(event.Type))
	rec.SetBody(otellog.StringValue(event.Type))
	add := func(k, v string) {
		if v != "" {
			rec.AddAttributes(otellog.String(k, v))
		}
	}
	add("event.id", event.ID)
	add("event.type", event.Type)
	add("user_id", event.UserID)
	add("resource", event.Resource)
	add("client.ip", event.IP)
	add("source", event.Source)
	for k, v := range event.Attributes {
		add("attr."+k, v)
	}
	e.logger.Emit(ctx, rec)
	return nil
}

func severityOf(eventType string) otellog.Severity {
	switch eventType {
	case "refresh_reuse_detected":
		return otellog.SeverityWarn
	case "login_failure":
		return otellog.SeverityInfo2
	default:
		return otellog.SeverityInfo
	}
}
