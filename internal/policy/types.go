package policy

import (
	"github.com/tkingovr/viewfilter/api"
)

// Policy is the `policy` section of a site file.
type Policy struct {
	DefaultAction api.Verdict `yaml:"default_action" json:"default_action"`
	OPAPolicy     string      `yaml:"opa_policy,omitempty" json:"opa_policy,omitempty"`
	Rules         []Rule      `yaml:"rules" json:"rules"`
}

// Rule represents a single policy rule.
type Rule struct {
	Name    string    `yaml:"name" json:"name"`
	Match   RuleMatch `yaml:"match" json:"match"`
	Action  string    `yaml:"action" json:"action"`
	Message string    `yaml:"message,omitempty" json:"message,omitempty"`
}

// RuleMatch specifies conditions for matching a request. Empty fields match
// anything; a method of "*" matches any method.
type RuleMatch struct {
	Method     string                `yaml:"method,omitempty" json:"method,omitempty"`
	Path       string                `yaml:"path,omitempty" json:"path,omitempty"`
	PathPrefix string                `yaml:"path_prefix,omitempty" json:"path_prefix,omitempty"`
	PathRegex  string                `yaml:"path_regex,omitempty" json:"path_regex,omitempty"`
	Headers    map[string]ValueMatch `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// ValueMatch specifies a matching condition for a single header.
type ValueMatch struct {
	Exact string `yaml:"exact,omitempty" json:"exact,omitempty"`
	Regex string `yaml:"regex,omitempty" json:"regex,omitempty"`
}

// EvalInput is the input to a policy engine evaluation.
type EvalInput struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers,omitempty"`
}

// EvalResult is the output of a policy engine evaluation.
type EvalResult struct {
	Verdict api.Verdict `json:"verdict"`
	Rule    string      `json:"rule,omitempty"`
	Message string      `json:"message,omitempty"`
}
