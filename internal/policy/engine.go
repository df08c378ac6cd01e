package policy

import "context"

// Engine decides whether a request may proceed to its handler.
type Engine interface {
	// Evaluate checks a request against the loaded policy and returns a verdict.
	Evaluate(ctx context.Context, input *EvalInput) (*EvalResult, error)

	// Reload re-reads the policy from its source. Engines with no backing
	// file return nil.
	Reload(ctx context.Context) error
}
