package filter

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricNamespace = "viewfilter"
	metricSubsystem = "http"
)

// MetricsFilter counts requests and observes their latency once the inner
// layers have produced a result.
type MetricsFilter struct {
	requests *prometheus.CounterVec
	aborts   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetricsFilter creates the collectors and registers them with reg.
func NewMetricsFilter(reg prometheus.Registerer) *MetricsFilter {
	f := &MetricsFilter{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: metricSubsystem,
			Name:      "requests_total",
			Help:      "Requests that completed the filter chain, by method and status.",
		}, []string{"method", "status"}),
		aborts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: metricSubsystem,
			Name:      "aborted_requests_total",
			Help:      "Requests short-circuited by a filter before reaching the handler.",
		}, []string{"filter"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Subsystem: metricSubsystem,
			Name:      "request_duration_seconds",
			Help:      "Time spent inside the filter chain.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	reg.MustRegister(f.requests, f.aborts, f.duration)
	return f
}

func (f *MetricsFilter) Name() string { return "metrics" }

func (f *MetricsFilter) Start(ctx context.Context, r *http.Request) Procedure {
	start := time.Now()
	return Steps(nil, func(result *Response) (*Response, error) {
		f.duration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		f.requests.WithLabelValues(r.Method, strconv.Itoa(result.StatusCode())).Inc()
		if by, ok := ScopeFrom(ctx).Record().AbortedBy(); ok {
			f.aborts.WithLabelValues(by.Name()).Inc()
		}
		return nil, nil
	})
}
