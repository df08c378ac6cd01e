package api

import (
	"time"
)

// Verdict represents the outcome of a policy evaluation.
type Verdict string

const (
	VerdictAllow Verdict = "allow"
	VerdictDeny  Verdict = "deny"
	VerdictLog   Verdict = "log"
)

// AuditRecord describes one request that went through a filter chain.
type AuditRecord struct {
	ID            string        `json:"id"`
	Timestamp     time.Time     `json:"timestamp"`
	RequestID     string        `json:"request_id,omitempty"`
	Method        string        `json:"method"`
	Path          string        `json:"path"`
	Status        int           `json:"status"`
	AbortedBy     string        `json:"aborted_by,omitempty"`
	FiltersBefore []string      `json:"filters_before"`
	FiltersAfter  []string      `json:"filters_after"`
	Duration      time.Duration `json:"duration,omitempty"`
}

// CheckRequest is used by the CLI `check` command and the admin API.
type CheckRequest struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers,omitempty"`
}

// CheckResponse is the result of a policy check.
type CheckResponse struct {
	Verdict Verdict `json:"verdict"`
	Rule    string  `json:"rule,omitempty"`
	Message string  `json:"message,omitempty"`
}

// RouteInfo describes a bound route and the filters wrapping it, outermost
// first.
type RouteInfo struct {
	Path    string   `json:"path"`
	Methods []string `json:"methods"`
	Handler string   `json:"handler,omitempty"`
	Filters []string `json:"filters"`
}
