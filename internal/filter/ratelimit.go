package filter

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimitConfig defines rate limiting rules.
type RateLimitConfig struct {
	// Global is the global rate limit (requests per window across all paths).
	Global *RateLimit

	// PerPath maps request paths to per-path rate limits.
	PerPath map[string]*RateLimit
}

// RateLimit defines a single rate limit: max requests per time window.
type RateLimit struct {
	Max    int
	Window time.Duration
}

// slidingWindow tracks request timestamps for rate limiting.
type slidingWindow struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// RateLimitFilter enforces per-path and global rate limits using a sliding
// window. Rejected requests are aborted with 429.
type RateLimitFilter struct {
	config  RateLimitConfig
	mu      sync.RWMutex
	windows map[string]*slidingWindow // key: path or "_global"
	now     func() time.Time
}

// NewRateLimitFilter creates a new rate limit filter.
func NewRateLimitFilter(config RateLimitConfig) *RateLimitFilter {
	return &RateLimitFilter{
		config:  config,
		windows: make(map[string]*slidingWindow),
		now:     time.Now,
	}
}

func (f *RateLimitFilter) Name() string { return "rate_limit" }

func (f *RateLimitFilter) Start(_ context.Context, r *http.Request) Procedure {
	return Steps(func() (*Response, error) {
		return f.check(r.URL.Path), nil
	}, nil)
}

func (f *RateLimitFilter) check(path string) *Response {
	now := f.now()

	if limit, ok := f.config.PerPath[path]; ok {
		if !f.allow(path, limit, now) {
			return tooManyRequests(fmt.Sprintf("rate limit exceeded for %s: max %d per %s",
				path, limit.Max, limit.Window), limit.Window)
		}
	}

	if f.config.Global != nil {
		if !f.allow("_global", f.config.Global, now) {
			return tooManyRequests(fmt.Sprintf("global rate limit exceeded: max %d per %s",
				f.config.Global.Max, f.config.Global.Window), f.config.Global.Window)
		}
	}

	return nil
}

func tooManyRequests(msg string, window time.Duration) *Response {
	retry := strconv.Itoa(int(math.Ceil(window.Seconds())))
	return NewResponse(http.StatusTooManyRequests, msg).WithHeader("Retry-After", retry)
}

// allow checks if a request is allowed under the given rate limit.
func (f *RateLimitFilter) allow(key string, limit *RateLimit, now time.Time) bool {
	f.mu.Lock()
	w, ok := f.windows[key]
	if !ok {
		w = &slidingWindow{}
		f.windows[key] = w
	}
	f.mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-limit.Window)
	valid := 0
	for _, ts := range w.timestamps {
		if ts.After(cutoff) {
			w.timestamps[valid] = ts
			valid++
		}
	}
	w.timestamps = w.timestamps[:valid]

	if len(w.timestamps) >= limit.Max {
		return false
	}

	w.timestamps = append(w.timestamps, now)
	return true
}

// Reset clears all rate limit windows.
func (f *RateLimitFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = make(map[string]*slidingWindow)
}
