package filter

import (
	"log/slog"
	"slices"
)

// Chain is an ordered list of filters. Index 0 is the outermost filter: its
// before segment runs first and its after segment runs last.
type Chain struct {
	filters []Filter
	logger  *slog.Logger
}

// NewChain creates a new filter chain.
func NewChain(logger *slog.Logger, filters ...Filter) *Chain {
	return &Chain{
		filters: slices.Clone(filters),
		logger:  logger,
	}
}

// Then composes the chain around h. An empty chain returns h unchanged.
func (c *Chain) Then(h Handler) Handler {
	for i := len(c.filters) - 1; i >= 0; i-- {
		h = NewExecutor(c.filters[i], h, c.logger).Run
	}
	return h
}

// Append returns a new chain with more filters nested inside this one's.
// The receiver is not modified.
func (c *Chain) Append(more ...Filter) *Chain {
	filters := make([]Filter, 0, len(c.filters)+len(more))
	filters = append(filters, c.filters...)
	filters = append(filters, more...)
	return &Chain{filters: filters, logger: c.logger}
}

// Filters returns a copy of the chain's filters in order.
func (c *Chain) Filters() []Filter {
	return slices.Clone(c.filters)
}

// Len returns the number of filters in the chain.
func (c *Chain) Len() int {
	return len(c.filters)
}

// Compose wraps h with filters, the first being outermost.
func Compose(h Handler, filters ...Filter) Handler {
	return NewChain(nil, filters...).Then(h)
}
