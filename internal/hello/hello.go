// Package hello is a small site built on the route binder: a greeting set by
// a shared filter, a JSON rendering of it, and a page that is always refused.
package hello

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tkingovr/viewfilter/internal/filter"
	"github.com/tkingovr/viewfilter/internal/route"
)

// MessageKey is the scope key holding the greeting.
const MessageKey = "message"

const links = `<p><a href="json">JSON</a></p>
<p><a href="error">error</a></p>`

var (
	// Greeting sets the request message. Bind it as a shared filter.
	Greeting = filter.New("greeting", func(ctx context.Context, r *http.Request, y *filter.Yielder) error {
		filter.ScopeFrom(ctx).Set(MessageKey, "Hello, world!")
		y.Yield(nil)
		return nil
	})

	// JSON serializes the body of the handler's result.
	JSON = filter.New("json", func(ctx context.Context, r *http.Request, y *filter.Yielder) error {
		result := y.Yield(nil)
		if result == nil {
			return nil
		}
		data, err := json.Marshal(result.Body)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", r.URL.Path, err)
		}
		y.Yield(filter.NewResponse(result.StatusCode(), data).WithHeader("Content-Type", "application/json"))
		return nil
	})

	// Teapot refuses any request that already carries a message.
	Teapot = filter.New("teapot", func(ctx context.Context, r *http.Request, y *filter.Yielder) error {
		if msg, _ := message(ctx); msg != "" {
			y.Yield(filter.Abort(http.StatusTeapot))
			return nil
		}
		y.Yield(nil)
		return nil
	})
)

func message(ctx context.Context) (string, bool) {
	v, ok := filter.ScopeFrom(ctx).Get(MessageKey)
	s, _ := v.(string)
	return s, ok
}

// Index renders the greeting as HTML.
func Index(ctx context.Context, r *http.Request) (*filter.Response, error) {
	msg, _ := message(ctx)
	return filter.NewResponse(http.StatusOK, msg+links), nil
}

// Message returns the greeting as a map, for the json filter to render.
func Message(ctx context.Context, r *http.Request) (*filter.Response, error) {
	msg, _ := message(ctx)
	return filter.NewResponse(http.StatusOK, map[string]string{"message": msg}), nil
}

// Handlers maps the names used in site files to handlers.
func Handlers() map[string]filter.Handler {
	return map[string]filter.Handler{
		"hello":       Index,
		"hello_json":  Message,
		"hello_error": Message,
	}
}

// Filters returns the filters this site defines.
func Filters() []filter.Filter {
	return []filter.Filter{Greeting, JSON, Teapot}
}

// Register binds the site's routes. b must carry Greeting among its shared
// filters.
func Register(b *route.Binder) error {
	if err := b.Handle("", Index, http.MethodGet); err != nil {
		return err
	}
	if err := b.HandleOptions("json", route.Options{Filters: []filter.Filter{JSON}}, Message, http.MethodGet); err != nil {
		return err
	}
	return b.HandleOptions("error", route.Options{Filters: []filter.Filter{Teapot}}, Message, http.MethodGet)
}
