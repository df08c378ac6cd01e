package policy

import (
	"fmt"
	"os"
	"regexp"

	"github.com/tkingovr/viewfilter/api"
	"gopkg.in/yaml.v3"
)

// document is the part of a site file the policy package reads.
type document struct {
	Policy Policy `yaml:"policy"`
}

// LoadFile reads a site file and returns its validated policy section.
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	return LoadBytes(data)
}

// LoadBytes parses a site document and validates its policy section.
func LoadBytes(data []byte) (*Policy, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}
	if err := Validate(&doc.Policy); err != nil {
		return nil, err
	}
	return &doc.Policy, nil
}

// Validate checks rules and fills in the default action.
func Validate(p *Policy) error {
	if p.DefaultAction == "" {
		p.DefaultAction = api.VerdictAllow
	}

	validActions := map[string]bool{
		"allow": true, "deny": true, "log": true,
	}
	if !validActions[string(p.DefaultAction)] {
		return fmt.Errorf("invalid default_action %q", p.DefaultAction)
	}

	for i, rule := range p.Rules {
		if rule.Name == "" {
			return fmt.Errorf("rule %d: name is required", i)
		}
		if !validActions[rule.Action] {
			return fmt.Errorf("rule %q: invalid action %q", rule.Name, rule.Action)
		}
		if rule.Match.PathRegex != "" {
			if _, err := regexp.Compile(rule.Match.PathRegex); err != nil {
				return fmt.Errorf("rule %q: path_regex invalid: %w", rule.Name, err)
			}
		}
		for key, vm := range rule.Match.Headers {
			if vm.Regex != "" {
				if _, err := regexp.Compile(vm.Regex); err != nil {
					return fmt.Errorf("rule %q: header %q regex invalid: %w", rule.Name, key, err)
				}
			}
		}
	}

	return nil
}
