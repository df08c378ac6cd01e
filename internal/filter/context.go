package filter

import (
	"context"
	"slices"
	"sync"
)

type scopeKey struct{}

// Scope carries per-request state through a chain: the execution record and
// a small value bag shared by filters and the handler of one request.
type Scope struct {
	record Record

	mu     sync.RWMutex
	values map[string]any
}

// NewScope attaches a fresh Scope to ctx.
func NewScope(ctx context.Context) (context.Context, *Scope) {
	s := &Scope{values: make(map[string]any)}
	return context.WithValue(ctx, scopeKey{}, s), s
}

// ScopeFrom returns the Scope attached to ctx, or nil.
func ScopeFrom(ctx context.Context) *Scope {
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}

// ensureScope returns ctx with a Scope, creating one on first use.
func ensureScope(ctx context.Context) (context.Context, *Scope) {
	if s := ScopeFrom(ctx); s != nil {
		return ctx, s
	}
	return NewScope(ctx)
}

// Record returns the execution record of the request. Nil-safe.
func (s *Scope) Record() *Record {
	if s == nil {
		return nil
	}
	return &s.record
}

// Set stores a request-scoped value.
func (s *Scope) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Get returns a request-scoped value. Nil-safe.
func (s *Scope) Get(key string) (any, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Record is the audit trail of which filters completed their before and
// after segments during one request. The zero value is empty and ready to use;
// a nil *Record reads as empty.
type Record struct {
	mu      sync.Mutex
	before  []Filter
	after   []Filter
	abortBy Filter
}

func (rec *Record) markBefore(f Filter) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.before = append(rec.before, f)
}

func (rec *Record) markAfter(f Filter) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.after = append(rec.after, f)
}

func (rec *Record) markAbort(f Filter) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.abortBy == nil {
		rec.abortBy = f
	}
}

// AbortedBy returns the filter whose before segment short-circuited the
// request, if any.
func (rec *Record) AbortedBy() (Filter, bool) {
	if rec == nil {
		return nil, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.abortBy, rec.abortBy != nil
}

// RanBefore reports whether f completed its before segment.
func (rec *Record) RanBefore(f Filter) bool {
	return slices.Contains(rec.Before(), f)
}

// RanAfter reports whether f ran its after segment.
func (rec *Record) RanAfter(f Filter) bool {
	return slices.Contains(rec.After(), f)
}

// Before returns the filters whose before segment completed, in execution
// order.
func (rec *Record) Before() []Filter {
	if rec == nil {
		return []Filter{}
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return slices.Clone(rec.before)
}

// After returns the filters whose after segment ran, in execution order
// (innermost first).
func (rec *Record) After() []Filter {
	if rec == nil {
		return []Filter{}
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return slices.Clone(rec.after)
}

// FilterRanBefore reports whether f completed its before segment in the
// request carried by ctx.
func FilterRanBefore(ctx context.Context, f Filter) bool {
	return ScopeFrom(ctx).Record().RanBefore(f)
}

// FilterRanAfter reports whether f ran its after segment in the request
// carried by ctx.
func FilterRanAfter(ctx context.Context, f Filter) bool {
	return ScopeFrom(ctx).Record().RanAfter(f)
}

// FiltersRanBefore returns the before-run filters of the request.
func FiltersRanBefore(ctx context.Context) []Filter {
	return ScopeFrom(ctx).Record().Before()
}

// FiltersRanAfter returns the after-run filters of the request.
func FiltersRanAfter(ctx context.Context) []Filter {
	return ScopeFrom(ctx).Record().After()
}

// Names maps filters to their names.
func Names(filters []Filter) []string {
	names := make([]string, len(filters))
	for i, f := range filters {
		names[i] = f.Name()
	}
	return names
}
