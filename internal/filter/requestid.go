package filter

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request id in and out.
	RequestIDHeader = "X-Request-Id"

	// RequestIDKey is the scope key holding the request id string.
	RequestIDKey = "request_id"

	maxRequestIDLen = 128
)

// RequestIDFilter assigns every request an id, reusing a sane incoming
// X-Request-Id, and stamps it on the result.
type RequestIDFilter struct{}

func NewRequestIDFilter() *RequestIDFilter { return &RequestIDFilter{} }

func (f *RequestIDFilter) Name() string { return "request_id" }

func (f *RequestIDFilter) Start(ctx context.Context, r *http.Request) Procedure {
	var id string
	return Steps(func() (*Response, error) {
		id = r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		ScopeFrom(ctx).Set(RequestIDKey, id)
		return nil, nil
	}, func(result *Response) (*Response, error) {
		if result == nil {
			return nil, nil
		}
		return result.WithHeader(RequestIDHeader, id), nil
	})
}

// RequestID returns the id assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	v, _ := ScopeFrom(ctx).Get(RequestIDKey)
	id, _ := v.(string)
	return id
}
