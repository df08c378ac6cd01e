package api

import "time"

// QueryFilter defines criteria for querying audit records.
type QueryFilter struct {
	Since   time.Time `json:"since,omitempty"`
	Until   time.Time `json:"until,omitempty"`
	Method  string    `json:"method,omitempty"`
	Path    string    `json:"path,omitempty"`
	Status  int       `json:"status,omitempty"`
	Aborted bool      `json:"aborted,omitempty"`
	Limit   int       `json:"limit,omitempty"`
	Offset  int       `json:"offset,omitempty"`
}

// AuditStats provides summary statistics for the admin API.
type AuditStats struct {
	TotalRequests int            `json:"total_requests"`
	AbortedCount  int            `json:"aborted_count"`
	ByStatus      map[int]int    `json:"by_status"`
	ByPath        map[string]int `json:"by_path"`
	ByAbortFilter map[string]int `json:"by_abort_filter"`
}
