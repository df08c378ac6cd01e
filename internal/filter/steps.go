package filter

// Steps builds a Procedure from two plain functions, for filters that do not
// need to keep state across a suspension inside their own body.
//
// before runs as the first suspension; its non-nil result aborts. after runs
// as the second suspension; its non-nil result replaces. A nil before
// suspends with no value, a nil after terminates after the single suspension.
func Steps(before func() (*Response, error), after func(result *Response) (*Response, error)) Procedure {
	return &steps{before: before, after: after}
}

type steps struct {
	before func() (*Response, error)
	after  func(*Response) (*Response, error)
	closed bool
}

func (s *steps) Pre() (Step, error) {
	if s.closed {
		return Done(), nil
	}
	if s.before == nil {
		return Suspend(nil), nil
	}
	v, err := s.before()
	if err != nil {
		return Done(), err
	}
	return Suspend(v), nil
}

func (s *steps) Post(result *Response) (Step, error) {
	if s.closed || s.after == nil {
		return Done(), nil
	}
	v, err := s.after(result)
	if err != nil {
		return Done(), err
	}
	return Suspend(v), nil
}

func (s *steps) Close() { s.closed = true }
