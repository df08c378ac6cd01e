package route

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tkingovr/viewfilter/internal/filter"
)

// ErrConfig is matched by every route configuration error.
var ErrConfig = errors.New("invalid route configuration")

// ConfigError reports route options that are not recognized.
type ConfigError struct {
	Keys []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("unknown route option(s): %s", strings.Join(e.Keys, ", "))
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// Options is the closed set of per-route settings.
type Options struct {
	// Filters run inside the binder's shared filters, first outermost.
	Filters []filter.Filter
}

const optFilters = "filters"

// DecodeOptions turns the free-form options of a route entry into Options.
// Every unrecognized key is reported in a single *ConfigError.
func DecodeOptions(raw map[string]any, reg *filter.Registry) (Options, error) {
	var unknown []string
	for key := range raw {
		if key != optFilters {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Options{}, &ConfigError{Keys: unknown}
	}

	v, ok := raw[optFilters]
	if !ok || v == nil {
		return Options{}, nil
	}
	names, err := stringList(v)
	if err != nil {
		return Options{}, fmt.Errorf("%w: %s: %w", ErrConfig, optFilters, err)
	}
	filters, err := reg.Lookup(names...)
	if err != nil {
		return Options{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return Options{Filters: filters}, nil
}

func stringList(v any) ([]string, error) {
	switch l := v.(type) {
	case []string:
		return l, nil
	case string:
		return []string{l}, nil
	case []any:
		out := make([]string, 0, len(l))
		for i, item := range l {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("item %d is %T, expected a filter name", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list of filter names, got %T", v)
	}
}
