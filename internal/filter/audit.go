package filter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/tkingovr/viewfilter/api"
	"github.com/tkingovr/viewfilter/internal/audit"
)

// AuditFilter writes an audit record for every request once the inner
// layers have produced a result. Place it outermost to see the whole chain.
type AuditFilter struct {
	store  audit.Store
	logger *slog.Logger
}

func NewAuditFilter(store audit.Store, logger *slog.Logger) *AuditFilter {
	return &AuditFilter{store: store, logger: logger}
}

func (f *AuditFilter) Name() string { return "audit" }

func (f *AuditFilter) Start(ctx context.Context, r *http.Request) Procedure {
	start := time.Now()
	return Steps(nil, func(result *Response) (*Response, error) {
		record := newAuditRecord(ctx, r, result, start)
		if err := f.store.Write(ctx, record); err != nil {
			f.logger.Error("writing audit record", "error", err, "path", record.Path)
		}
		return nil, nil
	})
}

func newAuditRecord(ctx context.Context, r *http.Request, result *Response, start time.Time) *api.AuditRecord {
	scope := ScopeFrom(ctx)
	rec := scope.Record()

	record := &api.AuditRecord{
		Timestamp:     start,
		Method:        r.Method,
		Path:          r.URL.Path,
		Status:        result.StatusCode(),
		FiltersBefore: Names(rec.Before()),
		FiltersAfter:  Names(rec.After()),
		Duration:      time.Since(start),
	}
	if f, ok := rec.AbortedBy(); ok {
		record.AbortedBy = f.Name()
	}
	if id, ok := scope.Get(RequestIDKey); ok {
		record.RequestID, _ = id.(string)
	}
	return record
}
