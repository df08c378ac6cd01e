package policy

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/tkingovr/viewfilter/api"
)

// YAMLEngine implements first-match-wins policy evaluation using YAML rules.
type YAMLEngine struct {
	mu     sync.RWMutex
	policy *Policy
	path   string

	// compiled regex cache, keyed by rule name and match target
	regexCache map[string]*regexp.Regexp
}

// NewYAMLEngine creates a new YAML policy engine from a site file path.
func NewYAMLEngine(path string) (*YAMLEngine, error) {
	e := &YAMLEngine{path: path}
	if err := e.Reload(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

// NewYAMLEngineFromPolicy creates a new YAML policy engine from an already-loaded policy.
func NewYAMLEngineFromPolicy(p *Policy) (*YAMLEngine, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}
	regexes, err := compileRegexes(p)
	if err != nil {
		return nil, err
	}
	return &YAMLEngine{policy: p, regexCache: regexes}, nil
}

// Evaluate checks the input against rules in order, returning the first match.
func (e *YAMLEngine) Evaluate(_ context.Context, input *EvalInput) (*EvalResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for i := range e.policy.Rules {
		rule := &e.policy.Rules[i]
		if e.matches(rule, input) {
			return &EvalResult{
				Verdict: api.Verdict(rule.Action),
				Rule:    rule.Name,
				Message: rule.Message,
			}, nil
		}
	}

	return &EvalResult{
		Verdict: e.policy.DefaultAction,
		Rule:    "_default",
		Message: "no matching rule; default action applied",
	}, nil
}

// Reload re-reads the policy from disk. Engines built from a policy value
// have nothing to reload.
func (e *YAMLEngine) Reload(_ context.Context) error {
	if e.path == "" {
		return nil
	}
	p, err := LoadFile(e.path)
	if err != nil {
		return err
	}
	regexes, err := compileRegexes(p)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy = p
	e.regexCache = regexes
	return nil
}

// Policy returns the current loaded policy.
func (e *YAMLEngine) Policy() *Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

func compileRegexes(p *Policy) (map[string]*regexp.Regexp, error) {
	cache := make(map[string]*regexp.Regexp)
	for _, rule := range p.Rules {
		if rule.Match.PathRegex != "" {
			re, err := regexp.Compile(rule.Match.PathRegex)
			if err != nil {
				return nil, fmt.Errorf("rule %q path_regex: %w", rule.Name, err)
			}
			cache[rule.Name+":path"] = re
		}
		for key, vm := range rule.Match.Headers {
			if vm.Regex != "" {
				re, err := regexp.Compile(vm.Regex)
				if err != nil {
					return nil, fmt.Errorf("rule %q header %q: %w", rule.Name, key, err)
				}
				cache[rule.Name+":header:"+http.CanonicalHeaderKey(key)] = re
			}
		}
	}
	return cache, nil
}

func (e *YAMLEngine) matches(rule *Rule, input *EvalInput) bool {
	m := rule.Match

	if m.Method != "" && m.Method != "*" && !strings.EqualFold(m.Method, input.Method) {
		return false
	}
	if m.Path != "" && m.Path != input.Path {
		return false
	}
	if m.PathPrefix != "" && !strings.HasPrefix(input.Path, m.PathPrefix) {
		return false
	}
	if m.PathRegex != "" {
		re, ok := e.regexCache[rule.Name+":path"]
		if !ok || !re.MatchString(input.Path) {
			return false
		}
	}

	for key, vm := range m.Headers {
		key = http.CanonicalHeaderKey(key)
		val, ok := lookupHeader(input.Headers, key)
		if !ok {
			return false
		}
		if !e.matchValue(rule.Name+":header:"+key, vm, val) {
			return false
		}
	}

	return true
}

func (e *YAMLEngine) matchValue(cacheKey string, vm ValueMatch, val string) bool {
	if vm.Exact != "" {
		return val == vm.Exact
	}
	if vm.Regex != "" {
		re, ok := e.regexCache[cacheKey]
		if !ok {
			return false
		}
		return re.MatchString(val)
	}
	return true
}

func lookupHeader(headers map[string]string, key string) (string, bool) {
	for k, v := range headers {
		if http.CanonicalHeaderKey(k) == key {
			return v, true
		}
	}
	return "", false
}
