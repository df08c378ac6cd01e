package filter

import (
	"context"
	"iter"
	"net/http"
)

// Body is a filter written as a straight-line procedure. It suspends by
// calling y.Yield and must do so at least once.
//
//	func(ctx context.Context, r *http.Request, y *filter.Yielder) error {
//		if !loggedIn(r) {
//			y.Yield(filter.Abort(http.StatusUnauthorized))
//			return nil
//		}
//		result := y.Yield(nil)
//		y.Yield(decorate(result))
//		return nil
//	}
type Body func(ctx context.Context, r *http.Request, y *Yielder) error

// Coroutine is a Filter defined by a Body.
type Coroutine struct {
	name string
	body Body
}

// New creates a coroutine filter.
func New(name string, body Body) *Coroutine {
	return &Coroutine{name: name, body: body}
}

func (c *Coroutine) Name() string { return c.name }

func (c *Coroutine) Start(ctx context.Context, r *http.Request) Procedure {
	p := &coroutineProc{y: &Yielder{}}
	seq := func(yield func(*Response) bool) {
		p.y.yield = yield
		defer func() {
			if v := recover(); v != nil {
				if _, ok := v.(stopped); ok {
					return
				}
				panic(v)
			}
		}()
		p.err = c.body(ctx, r, p.y)
	}
	p.next, p.stop = iter.Pull(seq)
	return p
}

// Yielder is the suspension handle passed to a Body.
type Yielder struct {
	yield func(*Response) bool
	sent  *Response
}

// Yield suspends the body handing out v, and returns the value the body is
// resumed with: nil after the first suspension, the downstream result after
// the second. Once the procedure is closed Yield does not return; the body
// unwinds and its deferred calls run.
func (y *Yielder) Yield(v *Response) *Response {
	if !y.yield(v) {
		panic(stopped{})
	}
	return y.sent
}

type stopped struct{}

type coroutineProc struct {
	y    *Yielder
	next func() (*Response, bool)
	stop func()
	err  error
}

func (p *coroutineProc) Pre() (Step, error) {
	return p.advance()
}

func (p *coroutineProc) Post(result *Response) (Step, error) {
	p.y.sent = result
	return p.advance()
}

func (p *coroutineProc) Close() {
	p.stop()
}

func (p *coroutineProc) advance() (Step, error) {
	v, ok := p.next()
	if !ok {
		return Done(), p.err
	}
	return Suspend(v), nil
}
