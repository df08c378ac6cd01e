package route

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/gorilla/mux"

	"github.com/tkingovr/viewfilter/api"
	"github.com/tkingovr/viewfilter/internal/config"
	"github.com/tkingovr/viewfilter/internal/filter"
)

// Binder registers filtered handlers on a router. Every route it binds runs
// the shared filters outermost and its own filters inside them.
type Binder struct {
	router   *mux.Router
	basePath string
	shared   *filter.Chain
	logger   *slog.Logger

	mu     sync.Mutex
	routes []api.RouteInfo
}

// NewBinder creates a binder mounting routes under basePath.
func NewBinder(router *mux.Router, basePath string, logger *slog.Logger, shared ...filter.Filter) *Binder {
	return &Binder{
		router:   router,
		basePath: basePath,
		shared:   filter.NewChain(logger, shared...),
		logger:   logger,
	}
}

// Handle binds h at basePath+path with only the shared filters. Methods
// default to GET.
func (b *Binder) Handle(path string, h filter.Handler, methods ...string) error {
	return b.HandleOptions(path, Options{}, h, methods...)
}

// HandleOptions binds h at basePath+path with opts.Filters nested inside the
// shared filters.
func (b *Binder) HandleOptions(path string, opts Options, h filter.Handler, methods ...string) error {
	return b.bind("", path, opts, h, methods)
}

// Bind registers the routes of a site file, resolving handlers by name and
// filters through reg. Configuration errors from every route are joined.
func (b *Binder) Bind(routes []config.Route, handlers map[string]filter.Handler, reg *filter.Registry) error {
	var errs []error
	for _, rt := range routes {
		h, ok := handlers[rt.Handler]
		if !ok {
			errs = append(errs, fmt.Errorf("route %q: unknown handler %q", rt.Path, rt.Handler))
			continue
		}
		opts, err := DecodeOptions(rt.Options, reg)
		if err != nil {
			errs = append(errs, fmt.Errorf("route %q: %w", rt.Path, err))
			continue
		}
		if err := b.bind(rt.Handler, rt.Path, opts, h, rt.Methods); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Binder) bind(name, path string, opts Options, h filter.Handler, methods []string) error {
	if h == nil {
		return fmt.Errorf("route %q: nil handler", path)
	}
	if len(methods) == 0 {
		methods = []string{http.MethodGet}
	}
	full := b.basePath + path
	if full == "" {
		full = "/"
	}

	chain := b.shared.Append(opts.Filters...)
	b.router.Handle(full, b.adapt(chain.Then(h))).Methods(methods...)

	b.mu.Lock()
	b.routes = append(b.routes, api.RouteInfo{
		Path:    full,
		Methods: slices.Clone(methods),
		Handler: name,
		Filters: filter.Names(chain.Filters()),
	})
	b.mu.Unlock()

	b.logger.Debug("route bound", "path", full, "methods", methods, "filters", chain.Len())
	return nil
}

// Routes describes the bound routes in registration order.
func (b *Binder) Routes() []api.RouteInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.routes)
}

// adapt turns a composed Handler into an http.Handler. Each request gets a
// fresh scope.
func (b *Binder) adapt(h filter.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, _ := filter.NewScope(r.Context())
		r = r.WithContext(ctx)

		resp, err := h(ctx, r)
		if err != nil {
			b.writeError(w, r, err)
			return
		}
		if err := writeResponse(w, resp); err != nil {
			b.logger.Error("writing response", "path", r.URL.Path, "error", err)
		}
	}
}

func (b *Binder) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var se *filter.StatusError
	if errors.As(err, &se) {
		http.Error(w, se.Message, se.Status)
		return
	}
	if errors.Is(err, filter.ErrContractViolation) {
		b.logger.Error("filter contract violation", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		b.logger.Error("handler failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
