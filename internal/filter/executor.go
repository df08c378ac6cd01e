package filter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// Executor drives one filter's two-phase lifecycle around a downstream
// Handler.
type Executor struct {
	filter Filter
	next   Handler
	logger *slog.Logger
}

// NewExecutor wraps next with f.
func NewExecutor(f Filter, next Handler, logger *slog.Logger) *Executor {
	return &Executor{filter: f, next: next, logger: logger}
}

// Run executes the before segment, the downstream handler unless the filter
// aborted, and the after segment.
func (e *Executor) Run(ctx context.Context, r *http.Request) (*Response, error) {
	ctx, scope := ensureScope(ctx)
	rec := scope.Record()

	run := &execution{filter: e.filter, proc: e.filter.Start(ctx, r)}
	defer run.finalize()

	step, err := run.proc.Pre()
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", e.filter.Name(), err)
	}
	if !step.Suspended {
		return nil, &ContractViolationError{Filter: e.filter.Name()}
	}
	run.advance(SuspendedPre)

	if step.Value != nil {
		run.aborted = true
		run.finalize()
		rec.markAbort(e.filter)
		e.log(run)
		return step.Value, nil
	}
	rec.markBefore(e.filter)

	result, err := e.next(ctx, r)
	if err != nil {
		return nil, err
	}

	step, err = run.proc.Post(result)
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", e.filter.Name(), err)
	}
	if step.Suspended {
		run.advance(SuspendedPost)
		if step.Value != nil {
			result = step.Value
			run.replaced = true
		}
	}
	run.finalize()
	rec.markAfter(e.filter)
	e.log(run)

	return result, nil
}

func (e *Executor) log(run *execution) {
	if e.logger == nil {
		return
	}
	e.logger.Debug("filter executed",
		"filter", e.filter.Name(),
		"state", run.state,
		"aborted", run.aborted,
		"replaced", run.replaced,
	)
}

// execution tracks the state of one procedure. States only move forward.
type execution struct {
	filter   Filter
	proc     Procedure
	state    State
	aborted  bool
	replaced bool
}

func (x *execution) advance(to State) {
	if to <= x.state {
		panic(fmt.Sprintf("filter %q: invalid transition %s -> %s", x.filter.Name(), x.state, to))
	}
	x.state = to
}

func (x *execution) finalize() {
	if x.state == Terminated {
		return
	}
	x.proc.Close()
	x.state = Terminated
}
