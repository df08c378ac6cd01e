package route

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkingovr/viewfilter/internal/filter"
)

func TestDecodeOptions(t *testing.T) {
	a, b := noop("a"), noop("b")
	reg := filter.NewRegistry(a, b)

	opts, err := DecodeOptions(nil, reg)
	require.NoError(t, err)
	assert.Empty(t, opts.Filters)

	opts, err = DecodeOptions(map[string]any{"filters": []any{"b", "a"}}, reg)
	require.NoError(t, err)
	assert.Equal(t, []filter.Filter{b, a}, opts.Filters)

	opts, err = DecodeOptions(map[string]any{"filters": []string{"a"}}, reg)
	require.NoError(t, err)
	assert.Equal(t, []filter.Filter{a}, opts.Filters)
}

func TestDecodeOptions_UnknownKeysReportedTogether(t *testing.T) {
	_, err := DecodeOptions(map[string]any{
		"filters": []any{"a"},
		"filter":  []any{"a"},
		"cache":   true,
	}, filter.NewRegistry(noop("a")))

	require.Error(t, err)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, []string{"cache", "filter"}, cfgErr.Keys)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Equal(t, "unknown route option(s): cache, filter", err.Error())
}

func TestDecodeOptions_BadFilters(t *testing.T) {
	reg := filter.NewRegistry(noop("a"))

	_, err := DecodeOptions(map[string]any{"filters": []any{"a", 3}}, reg)
	assert.ErrorIs(t, err, ErrConfig)

	_, err = DecodeOptions(map[string]any{"filters": 7}, reg)
	assert.ErrorIs(t, err, ErrConfig)

	_, err = DecodeOptions(map[string]any{"filters": []any{"a", "missing"}}, reg)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "missing")
}
