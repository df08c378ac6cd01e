package filter

import (
	"fmt"
	"net/http"
)

// Response is the value flowing back through a chain. A nil *Response is the
// "absent" value on every optional channel.
type Response struct {
	Status int
	Header http.Header
	Body   any
}

// NewResponse creates a response with the given status and body.
func NewResponse(status int, body any) *Response {
	return &Response{Status: status, Header: make(http.Header), Body: body}
}

// Abort creates a short-circuit response carrying the standard status text.
func Abort(status int) *Response {
	return NewResponse(status, http.StatusText(status))
}

// WithHeader returns a copy of the response with the header set.
func (r *Response) WithHeader(key, value string) *Response {
	c := r.Clone()
	c.Header.Set(key, value)
	return c
}

// Clone returns a copy with its own header map. The body is shared.
func (r *Response) Clone() *Response {
	c := *r
	if r.Header != nil {
		c.Header = r.Header.Clone()
	} else {
		c.Header = make(http.Header)
	}
	return &c
}

// StatusCode returns the status that will be written for r: 204 for a nil
// response, 200 when unset.
func (r *Response) StatusCode() int {
	if r == nil {
		return http.StatusNoContent
	}
	if r.Status == 0 {
		return http.StatusOK
	}
	return r.Status
}

// StatusError is returned by handlers to short-circuit with an HTTP status.
type StatusError struct {
	Status  int
	Message string
}

// NewStatusError creates a StatusError with the standard status text.
func NewStatusError(status int) *StatusError {
	return &StatusError{Status: status, Message: http.StatusText(status)}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}
