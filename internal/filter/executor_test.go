package filter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// passThrough suspends twice with no values.
func passThrough(name string) *Coroutine {
	return New(name, func(ctx context.Context, r *http.Request, y *Yielder) error {
		y.Yield(nil)
		y.Yield(nil)
		return nil
	})
}

// observer records the result its after segment receives.
func observer(name string, seen **Response) *Coroutine {
	return New(name, func(ctx context.Context, r *http.Request, y *Yielder) error {
		*seen = y.Yield(nil)
		return nil
	})
}

func aborter(name string, v *Response) *Coroutine {
	return New(name, func(ctx context.Context, r *http.Request, y *Yielder) error {
		y.Yield(v)
		return nil
	})
}

func staticHandler(resp *Response, calls *int) Handler {
	return func(ctx context.Context, r *http.Request) (*Response, error) {
		*calls++
		return resp, nil
	}
}

func newTestRequest() *http.Request {
	return httptest.NewRequest(http.MethodGet, "/test", nil)
}

func TestExecutor_NoAbortNoReplace(t *testing.T) {
	f0, f1, f2 := passThrough("f0"), passThrough("f1"), passThrough("f2")
	want := NewResponse(http.StatusOK, "hello")
	calls := 0

	ctx, scope := NewScope(context.Background())
	got, err := Compose(staticHandler(want, &calls), f0, f1, f2)(ctx, newTestRequest())
	require.NoError(t, err)

	assert.Same(t, want, got)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []Filter{f0, f1, f2}, scope.Record().Before())
	assert.Equal(t, []Filter{f2, f1, f0}, scope.Record().After())
	_, aborted := scope.Record().AbortedBy()
	assert.False(t, aborted)
}

func TestExecutor_MiddleFilterAborts(t *testing.T) {
	var seen0 *Response
	f0 := observer("f0", &seen0)
	deny := Abort(http.StatusForbidden)
	f1 := aborter("f1", deny)
	f2 := passThrough("f2")
	calls := 0

	ctx, scope := NewScope(context.Background())
	got, err := Compose(staticHandler(NewResponse(http.StatusOK, "ok"), &calls), f0, f1, f2)(ctx, newTestRequest())
	require.NoError(t, err)

	assert.Same(t, deny, got)
	assert.Zero(t, calls, "handler must not run")
	assert.Same(t, deny, seen0, "outer after segment receives the abort value")
	assert.Equal(t, []Filter{f0}, scope.Record().Before())
	assert.Equal(t, []Filter{f0}, scope.Record().After())

	by, ok := scope.Record().AbortedBy()
	require.True(t, ok)
	assert.Same(t, f1, by)
	assert.False(t, scope.Record().RanBefore(f2))
}

func TestExecutor_SoleYieldAbort(t *testing.T) {
	deny := Abort(http.StatusUnauthorized)
	f := aborter("auth", deny)
	h := func(ctx context.Context, r *http.Request) (*Response, error) {
		t.Fatal("handler must not run")
		return nil, nil
	}

	ctx, scope := NewScope(context.Background())
	got, err := Compose(h, f)(ctx, newTestRequest())
	require.NoError(t, err)

	assert.Same(t, deny, got)
	assert.Empty(t, scope.Record().Before())
	assert.Empty(t, scope.Record().After())
}

func TestExecutor_ReplacesResult(t *testing.T) {
	replacement := NewResponse(http.StatusCreated, "replaced")
	f := New("replace", func(ctx context.Context, r *http.Request, y *Yielder) error {
		y.Yield(nil)
		y.Yield(replacement)
		return nil
	})
	calls := 0

	ctx, scope := NewScope(context.Background())
	got, err := Compose(staticHandler(NewResponse(http.StatusOK, "original"), &calls), f)(ctx, newTestRequest())
	require.NoError(t, err)

	assert.Same(t, replacement, got)
	assert.Equal(t, 1, calls)
	assert.True(t, scope.Record().RanAfter(f))
}

func TestExecutor_KeepsResult(t *testing.T) {
	want := NewResponse(http.StatusOK, "original")
	var seen *Response

	tests := []struct {
		name string
		f    Filter
	}{
		{"nil second yield", passThrough("pass")},
		{"terminates after first yield", observer("observe", &seen)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			ctx, scope := NewScope(context.Background())
			got, err := Compose(staticHandler(want, &calls), tt.f)(ctx, newTestRequest())
			require.NoError(t, err)

			assert.Same(t, want, got)
			assert.True(t, scope.Record().RanBefore(tt.f))
			assert.True(t, scope.Record().RanAfter(tt.f))
		})
	}
	assert.Same(t, want, seen)
}

func TestExecutor_ContractViolation(t *testing.T) {
	f := New("lazy", func(ctx context.Context, r *http.Request, y *Yielder) error {
		return nil
	})
	calls := 0

	ctx, scope := NewScope(context.Background())
	got, err := Compose(staticHandler(NewResponse(http.StatusOK, "ok"), &calls), f)(ctx, newTestRequest())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrContractViolation))
	var cv *ContractViolationError
	require.ErrorAs(t, err, &cv)
	assert.Equal(t, "lazy", cv.Filter)

	assert.Nil(t, got)
	assert.Zero(t, calls)
	assert.Empty(t, scope.Record().Before())
	assert.Empty(t, scope.Record().After())
}

func TestExecutor_BeforeSegmentError(t *testing.T) {
	boom := errors.New("boom")
	f := New("broken", func(ctx context.Context, r *http.Request, y *Yielder) error {
		return boom
	})
	calls := 0

	_, err := Compose(staticHandler(nil, &calls), f)(context.Background(), newTestRequest())
	require.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, ErrContractViolation))
	assert.Zero(t, calls)
}

func TestExecutor_HandlerErrorClosesFilters(t *testing.T) {
	closed := false
	f := New("cleanup", func(ctx context.Context, r *http.Request, y *Yielder) error {
		defer func() { closed = true }()
		y.Yield(nil)
		t.Error("after segment must not run when the handler fails")
		return nil
	})
	boom := NewStatusError(http.StatusNotFound)
	h := func(ctx context.Context, r *http.Request) (*Response, error) {
		return nil, boom
	}

	ctx, scope := NewScope(context.Background())
	_, err := Compose(h, f)(ctx, newTestRequest())

	require.ErrorIs(t, err, boom)
	assert.True(t, closed)
	assert.True(t, scope.Record().RanBefore(f))
	assert.False(t, scope.Record().RanAfter(f))
}

func TestExecutor_ClosedCoroutineCancelsThirdYield(t *testing.T) {
	deferred, thirdReturned := false, false
	f := New("greedy", func(ctx context.Context, r *http.Request, y *Yielder) error {
		defer func() { deferred = true }()
		y.Yield(nil)
		y.Yield(nil)
		y.Yield(nil)
		thirdReturned = true
		return nil
	})
	calls := 0

	_, err := Compose(staticHandler(NewResponse(http.StatusOK, "ok"), &calls), f)(context.Background(), newTestRequest())
	require.NoError(t, err)

	assert.True(t, deferred, "deferred cleanup runs on close")
	assert.False(t, thirdReturned, "third suspension is cancelled")
}

func TestExecutor_CreatesScopeWhenMissing(t *testing.T) {
	var rec *Record
	h := func(ctx context.Context, r *http.Request) (*Response, error) {
		rec = ScopeFrom(ctx).Record()
		return nil, nil
	}
	f := passThrough("p")

	_, err := Compose(h, f)(context.Background(), newTestRequest())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.RanBefore(f))
	assert.True(t, rec.RanAfter(f))
}

func TestExecutor_StepsProcedure(t *testing.T) {
	var order []string
	f := &stepsFilter{name: "steps", order: &order}
	h := func(ctx context.Context, r *http.Request) (*Response, error) {
		order = append(order, "handler")
		return NewResponse(http.StatusOK, "ok"), nil
	}

	got, err := Compose(h, f)(context.Background(), newTestRequest())
	require.NoError(t, err)
	assert.Equal(t, []string{"before", "handler", "after"}, order)
	assert.Equal(t, "ok", got.Body)
}

type stepsFilter struct {
	name  string
	order *[]string
}

func (f *stepsFilter) Name() string { return f.name }

func (f *stepsFilter) Start(ctx context.Context, r *http.Request) Procedure {
	return Steps(func() (*Response, error) {
		*f.order = append(*f.order, "before")
		return nil, nil
	}, func(result *Response) (*Response, error) {
		*f.order = append(*f.order, "after")
		return nil, nil
	})
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "created", Created.String())
	assert.Equal(t, "suspended_pre", SuspendedPre.String())
	assert.Equal(t, "suspended_post", SuspendedPost.String())
	assert.Equal(t, "terminated", Terminated.String())
	assert.Equal(t, "unknown", State(42).String())
}
