package filter

import (
	"context"
	"net/http"
)

// Handler produces the result for a request. Composed chains are Handlers too.
type Handler func(ctx context.Context, r *http.Request) (*Response, error)

// Filter is a named two-phase interceptor around a Handler.
//
// A Filter is immutable configuration shared by every request; per-request
// state belongs to the Procedure returned by Start. Filters are compared by
// identity when recording which phases ran, so implementations must be
// comparable (pointer receivers).
type Filter interface {
	// Name returns the filter name for logging and registry lookup.
	Name() string

	// Start creates a fresh run of the filter for one invocation.
	Start(ctx context.Context, r *http.Request) Procedure
}

// Procedure is one suspendable run of a filter. The executor drives it at
// most twice and then closes it.
type Procedure interface {
	// Pre runs the before segment up to the first suspension point. A
	// non-nil Step.Value aborts the handler.
	Pre() (Step, error)

	// Post resumes the procedure with the downstream result. A non-nil
	// Step.Value replaces that result.
	Post(result *Response) (Step, error)

	// Close finalizes the procedure. Any later suspension point is cancelled.
	Close()
}

// Step is the outcome of advancing a Procedure.
type Step struct {
	// Value is the optional value handed out at the suspension point.
	Value *Response

	// Suspended is false when the procedure returned instead of suspending.
	Suspended bool
}

// Suspend is the Step of a procedure that suspended handing out v.
func Suspend(v *Response) Step {
	return Step{Value: v, Suspended: true}
}

// Done is the Step of a procedure that returned.
func Done() Step {
	return Step{}
}

// State is the lifecycle position of a Procedure.
type State int

const (
	Created State = iota
	SuspendedPre
	SuspendedPost
	Terminated
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case SuspendedPre:
		return "suspended_pre"
	case SuspendedPost:
		return "suspended_post"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}
