package engine

import "context"

// Input is the request description a route policy decides on.
type Input struct {
	Method        string   `json:"method"`
	Path          string   `json:"path"`
	Authenticated bool     `json:"authenticated"`
	UserID        string   `json:"user_id"`
	Roles         []string `json:"roles"`
}

// Authorizer decides whether a request may reach a route.
type Authorizer interface {
	Authorize(ctx context.Context, in Input) (bool, error)
}
