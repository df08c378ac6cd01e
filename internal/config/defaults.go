package config

import (
	"fmt"
	"time"
)

const (
	DefaultListenAddr = ":8000"
	DefaultAdminAddr  = "127.0.0.1:9090"
	DefaultBasePath   = "/"
)

// DefaultLogDir returns the default log directory path.
func DefaultLogDir() string {
	return "~/.viewfilter/logs"
}

func (r *RateLimitRule) validate(name string) error {
	if r == nil {
		return nil
	}
	if r.Max <= 0 {
		return fmt.Errorf("rate limit %q: max must be positive", name)
	}
	if _, err := r.Duration(); err != nil {
		return fmt.Errorf("rate limit %q: %w", name, err)
	}
	return nil
}

// Duration parses the rule's window.
func (r *RateLimitRule) Duration() (time.Duration, error) {
	d, err := time.ParseDuration(r.Window)
	if err != nil {
		return 0, fmt.Errorf("invalid window %q: %w", r.Window, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid window %q: must be positive", r.Window)
	}
	return d, nil
}
