package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog/log"
)

const allowQuery = "data.aphinity.authz.allow"

// DefaultRegoPolicy lets any authenticated caller through, except that admin routes
// additionally need the admin role.
const DefaultRegoPolicy = `package aphinity.authz

default allow := false

admin_route if startswith(input.path, "/api/core/admin")

allow if {
	input.authenticated
	not admin_route
}

allow if {
	input.authenticated
	admin_route
	"admin" in input.roles
}
`

// OPAEvaluator evaluates route authorization with a compiled Rego policy.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles policy (DefaultRegoPolicy when empty). The policy must define
// data.aphinity.authz.allow.
func NewOPAEvaluator(ctx context.Context, policy string) (*OPAEvaluator, error) {
	if policy == "" {
		policy = DefaultRegoPolicy
	}
	q, err := rego.New(
		rego.Query(allowQuery),
		rego.Module("authz.rego", policy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	return &OPAEvaluator{query: q}, nil
}

// LoadOPAEvaluator reads the policy from path, or uses the default policy when path is empty.
func LoadOPAEvaluator(ctx context.Context, path string) (*OPAEvaluator, error) {
	if path == "" {
		return NewOPAEvaluator(ctx, "")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return NewOPAEvaluator(ctx, string(b))
}

// Authorize evaluates the policy for in. An undefined result denies.
func (e *OPAEvaluator) Authorize(ctx context.Context, in Input) (bool, error) {
	roles := in.Roles
	if roles == nil {
		roles = []string{}
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]any{
		"method":        in.Method,
		"path":          in.Path,
		"authenticated": in.Authenticated,
		"user_id":       in.UserID,
		"roles":         roles,
	}))
	if err != nil {
		log.Error().Err(err).Str("path", in.Path).Msg("policy: evaluation failed")
		return false, fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allow, _ := rs[0].Expressions[0].Value.(bool)
	return allow, nil
}

// HealthCheck evaluates the compiled policy against a fixed input. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	if _, err := e.Authorize(ctx, Input{Method: "GET", Path: "/healthz"}); err != nil {
		return err
	}
	return nil
}
