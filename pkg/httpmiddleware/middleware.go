// Package httpmiddleware holds the net/http middleware chain the API is
// served behind.
package httpmiddleware

import (
	"context"
	"net/http"
	"sync/atomic"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Middleware wraps an http.Handler.
type Middleware func(next http.Handler) http.Handler

// Wrap applies middlewares so that the first one is outermost.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

type routeKey struct{}

// withRoute installs an empty route holder that the router fills in once
// the request has been matched.
func withRoute(ctx context.Context) (context.Context, *atomic.Value) {
	if v, ok := ctx.Value(routeKey{}).(*atomic.Value); ok {
		return ctx, v
	}
	v := new(atomic.Value)
	return context.WithValue(ctx, routeKey{}, v), v
}

// SetRoute records the matched route pattern of the request. It also names
// the server span and labels the request metrics with the route.
func SetRoute(ctx context.Context, method, route string) {
	if v, ok := ctx.Value(routeKey{}).(*atomic.Value); ok {
		v.Store(route)
	}
	if route == "" {
		return
	}
	trace.SpanFromContext(ctx).SetName(method + " " + route)
	if l, ok := otelhttp.LabelerFromContext(ctx); ok {
		l.Add(attribute.String("http.route", route))
	}
}

// RouteFromContext returns the matched route pattern, or "" when the request
// did not match a route.
func RouteFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(routeKey{}).(*atomic.Value); ok {
		if s, ok := v.Load().(string); ok {
			return s
		}
	}
	return ""
}

func routeOf(v *atomic.Value) string {
	if s, ok := v.Load().(string); ok && s != "" {
		return s
	}
	return "unmatched"
}
