package cli

import (
	"fmt"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tkingovr/viewfilter/internal/audit"
	"github.com/tkingovr/viewfilter/internal/config"
	"github.com/tkingovr/viewfilter/internal/filter"
	"github.com/tkingovr/viewfilter/internal/hello"
	"github.com/tkingovr/viewfilter/internal/policy"
	"github.com/tkingovr/viewfilter/internal/route"
)

// defaultFilters are the shared filters of a site file that lists none.
var defaultFilters = []string{"request_id", "metrics", "audit", "policy", "greeting"}

func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// newEngine picks the OPA engine when a rego file is configured and the
// rules engine otherwise.
func newEngine(cfg *config.Config) (policy.Engine, error) {
	if p := cfg.File.Policy.OPAPolicy; p != "" {
		e, err := policy.NewOPAEngine(p)
		if err != nil {
			return nil, fmt.Errorf("creating OPA engine: %w", err)
		}
		return e, nil
	}
	if cfg.Path != "" {
		e, err := policy.NewYAMLEngine(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("creating policy engine: %w", err)
		}
		return e, nil
	}
	e, err := policy.NewYAMLEngineFromPolicy(&cfg.File.Policy)
	if err != nil {
		return nil, fmt.Errorf("creating policy engine: %w", err)
	}
	return e, nil
}

type site struct {
	router *mux.Router
	binder *route.Binder
}

func newSite(cfg *config.Config, engine policy.Engine, store audit.Store, metrics prometheus.Registerer) (*site, error) {
	chainCfg := filter.ChainConfig{
		Engine:     engine,
		AuditStore: store,
		Logger:     logger,
		Metrics:    metrics,
	}
	if ss := cfg.File.Settings.SecretScanner; ss != nil && ss.Enabled {
		chainCfg.SecretScanner = true
		chainCfg.EntropyThreshold = ss.EntropyThreshold
	}
	rl, err := filter.RateLimitConfigFromSettings(cfg.File.Settings.RateLimit)
	if err != nil {
		return nil, err
	}
	chainCfg.RateLimit = rl

	reg := filter.NewBuiltinRegistry(chainCfg)
	reg.Add(hello.Filters()...)

	names := cfg.File.Filters
	if len(names) == 0 {
		names = defaultFilters
	}
	shared, err := reg.Lookup(names...)
	if err != nil {
		return nil, fmt.Errorf("shared filters: %w", err)
	}

	router := mux.NewRouter()
	binder := route.NewBinder(router, cfg.BasePath, logger, shared...)

	if len(cfg.File.Routes) == 0 {
		err = hello.Register(binder)
	} else {
		err = binder.Bind(cfg.File.Routes, hello.Handlers(), reg)
	}
	if err != nil {
		return nil, fmt.Errorf("binding routes: %w", err)
	}

	return &site{router: router, binder: binder}, nil
}
