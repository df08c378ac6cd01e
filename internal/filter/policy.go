package filter

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tkingovr/viewfilter/api"
	"github.com/tkingovr/viewfilter/internal/policy"
)

// PolicyResultKey is the scope key holding the *policy.EvalResult of a request.
const PolicyResultKey = "policy_result"

// PolicyFilter evaluates the request against the policy engine and aborts
// denied requests with 403.
type PolicyFilter struct {
	engine policy.Engine
	logger *slog.Logger
}

func NewPolicyFilter(engine policy.Engine, logger *slog.Logger) *PolicyFilter {
	return &PolicyFilter{engine: engine, logger: logger}
}

func (f *PolicyFilter) Name() string { return "policy" }

func (f *PolicyFilter) Start(ctx context.Context, r *http.Request) Procedure {
	return Steps(func() (*Response, error) {
		return f.evaluate(ctx, r)
	}, nil)
}

func (f *PolicyFilter) evaluate(ctx context.Context, r *http.Request) (*Response, error) {
	input := &policy.EvalInput{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: flattenHeader(r.Header),
	}

	result, err := f.engine.Evaluate(ctx, input)
	if err != nil {
		return nil, err
	}
	ScopeFrom(ctx).Set(PolicyResultKey, result)

	switch result.Verdict {
	case api.VerdictDeny:
		f.logger.Warn("request denied",
			"method", r.Method,
			"path", r.URL.Path,
			"rule", result.Rule,
		)
		msg := result.Message
		if msg == "" {
			msg = "request denied by policy"
		}
		return NewResponse(http.StatusForbidden, msg).WithHeader("X-Policy-Rule", result.Rule), nil

	case api.VerdictLog:
		f.logger.Info("policy match",
			"method", r.Method,
			"path", r.URL.Path,
			"rule", result.Rule,
		)
	}

	return nil, nil
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}
