package filter

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tkingovr/viewfilter/internal/audit"
	"github.com/tkingovr/viewfilter/internal/config"
	"github.com/tkingovr/viewfilter/internal/policy"
)

// ChainConfig holds the dependencies of the built-in filters.
type ChainConfig struct {
	Engine           policy.Engine
	AuditStore       audit.Store
	Logger           *slog.Logger
	Metrics          prometheus.Registerer
	SecretScanner    bool
	EntropyThreshold float64
	RateLimit        *RateLimitConfig
}

// NewBuiltinRegistry registers the built-in filters whose dependencies are
// present in cfg. request_id is always available.
func NewBuiltinRegistry(cfg ChainConfig) *Registry {
	reg := NewRegistry(NewRequestIDFilter())

	if cfg.Metrics != nil {
		reg.Add(NewMetricsFilter(cfg.Metrics))
	}
	if cfg.AuditStore != nil {
		reg.Add(NewAuditFilter(cfg.AuditStore, cfg.Logger))
	}
	if cfg.Engine != nil {
		reg.Add(NewPolicyFilter(cfg.Engine, cfg.Logger))
	}
	if cfg.RateLimit != nil {
		reg.Add(NewRateLimitFilter(*cfg.RateLimit))
	}
	if cfg.SecretScanner {
		opts := []SecretScannerOption{}
		if cfg.EntropyThreshold > 0 {
			opts = append(opts, WithEntropyThreshold(cfg.EntropyThreshold))
		}
		reg.Add(NewSecretScannerFilter(cfg.Logger, opts...))
	}

	return reg
}

// BuildChain resolves names against reg into a chain, first name outermost.
func BuildChain(reg *Registry, logger *slog.Logger, names ...string) (*Chain, error) {
	filters, err := reg.Lookup(names...)
	if err != nil {
		return nil, fmt.Errorf("building chain: %w", err)
	}
	return NewChain(logger, filters...), nil
}

// RateLimitConfigFromSettings converts site rate limit settings to filter config.
func RateLimitConfigFromSettings(settings *config.RateLimitSettings) (*RateLimitConfig, error) {
	if settings == nil {
		return nil, nil
	}

	cfg := &RateLimitConfig{
		PerPath: make(map[string]*RateLimit),
	}

	if settings.Global != nil {
		d, err := settings.Global.Duration()
		if err != nil {
			return nil, fmt.Errorf("global rate limit: %w", err)
		}
		cfg.Global = &RateLimit{Max: settings.Global.Max, Window: d}
	}

	for path, rule := range settings.PerPath {
		d, err := rule.Duration()
		if err != nil {
			return nil, fmt.Errorf("rate limit for %s: %w", path, err)
		}
		cfg.PerPath[path] = &RateLimit{Max: rule.Max, Window: d}
	}

	return cfg, nil
}
