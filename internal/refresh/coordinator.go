// Package refresh renews expired access tokens from refresh tokens and collapses concurrent
// renewals of the same refresh token into a single rotation.
package refresh

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/identity/service"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/security"
)

const instrumentationName = "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/refresh"

// Rotator exchanges a refresh secret for a new token pair. *service.AuthService implements it.
type Rotator interface {
	Rotate(ctx context.Context, refreshSecret string, meta service.ClientMeta) (*service.IssuedTokens, error)
}

// AccessVerifier checks an access token's signature and returns its expiry.
// *security.TokenProvider implements it.
type AccessVerifier interface {
	VerifyExpiry(token string) (time.Time, error)
}

// Outcome is what Resolve decided for a request.
type Outcome int

const (
	// OutcomePassThrough leaves the request's credentials untouched.
	OutcomePassThrough Outcome = iota
	// OutcomeRefreshed means new tokens were issued and must replace the old ones.
	OutcomeRefreshed
	// OutcomeCleared means the refresh failed and both credentials must be dropped.
	OutcomeCleared
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRefreshed:
		return "refreshed"
	case OutcomeCleared:
		return "cleared"
	default:
		return "pass_through"
	}
}

// Result is the outcome of Resolve. Tokens is set for OutcomeRefreshed and Err for OutcomeCleared.
type Result struct {
	Outcome Outcome
	Tokens  *service.IssuedTokens
	Err     error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock sets the clock used to judge access token expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithTracerProvider sets the tracer provider; the global provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Coordinator) { c.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider; the global provider is used by default.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Coordinator) { c.meter = mp.Meter(instrumentationName) }
}

// Coordinator performs at most one rotation per refresh token at a time. Callers that
// arrive while a rotation for the same token is in flight wait for and share its result.
// Once the result is delivered the token is forgotten, so a later call rotates again.
type Coordinator struct {
	rotator  Rotator
	verifier AccessVerifier
	group    singleflight.Group
	now      func() time.Time

	tracer    trace.Tracer
	meter     metric.Meter
	rotations metric.Int64Counter
	shared    metric.Int64Counter
}

// NewCoordinator returns a Coordinator. Instrument registration errors fall back to no-op
// instruments.
func NewCoordinator(rotator Rotator, verifier AccessVerifier, opts ...Option) *Coordinator {
	c := &Coordinator{
		rotator:  rotator,
		verifier: verifier,
		now:      time.Now,
		tracer:   otel.Tracer(instrumentationName),
		meter:    otel.Meter(instrumentationName),
	}
	for _, o := range opts {
		o(c)
	}
	var err error
	if c.rotations, err = c.meter.Int64Counter("auth.refresh.rotations",
		metric.WithDescription("Refresh token rotations executed, by result")); err != nil {
		c.rotations = noop.Int64Counter{}
	}
	if c.shared, err = c.meter.Int64Counter("auth.refresh.coalesced",
		metric.WithDescription("Refresh requests served by a rotation shared with concurrent requests")); err != nil {
		c.shared = noop.Int64Counter{}
	}
	return c
}

// AccessValid reports whether accessToken verifies and has not expired.
func (c *Coordinator) AccessValid(accessToken string) bool {
	if accessToken == "" {
		return false
	}
	exp, err := c.verifier.VerifyExpiry(accessToken)
	if err != nil {
		return false
	}
	return c.now().Before(exp)
}

// Resolve decides what to do for a request carrying accessToken and refreshToken. Only a
// request carrying both can rotate; one missing either credential, or carrying a valid
// access token, passes through.
func (c *Coordinator) Resolve(ctx context.Context, accessToken, refreshToken string, meta service.ClientMeta) Result {
	if accessToken == "" || refreshToken == "" || c.AccessValid(accessToken) {
		return Result{Outcome: OutcomePassThrough}
	}
	tokens, err := c.Refresh(ctx, refreshToken, meta)
	if err != nil {
		return Result{Outcome: OutcomeCleared, Err: err}
	}
	return Result{Outcome: OutcomeRefreshed, Tokens: tokens}
}

// Refresh rotates refreshToken, joining an in-flight rotation of the same token if there
// is one. Every caller of one rotation receives the same tokens or the same error. The
// rotation itself is detached from the first caller's cancellation; each caller stops
// waiting when its own ctx is done.
func (c *Coordinator) Refresh(ctx context.Context, refreshToken string, meta service.ClientMeta) (*service.IssuedTokens, error) {
	key := security.HashToken(refreshToken)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.rotate(context.WithoutCancel(ctx), refreshToken, meta)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.shared.Add(ctx, 1)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*service.IssuedTokens), nil
	}
}

func (c *Coordinator) rotate(ctx context.Context, refreshToken string, meta service.ClientMeta) (*service.IssuedTokens, error) {
	ctx, span := c.tracer.Start(ctx, "refresh.rotate")
	defer span.End()
	tokens, err := c.rotator.Rotate(ctx, refreshToken, meta)
	kind := service.KindOf(err)
	c.rotations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", kind.String())))
	if err != nil {
		span.SetAttributes(attribute.String("auth.failure", kind.String()))
		span.SetStatus(codes.Error, kind.String())
		return nil, err
	}
	span.SetAttributes(attribute.String("auth.session_id", tokens.SessionID))
	return tokens, nil
}
