package httpmiddleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides the OpenTelemetry providers of the process.
type Telemetry interface {
	MeterProvider() metric.MeterProvider
	TracerProvider() trace.TracerProvider
}

// Instrument records traces and HTTP server metrics for every request. The
// span is renamed and the metrics labelled when the router calls SetRoute.
func Instrument(service string, t Telemetry) Middleware {
	return func(next http.Handler) http.Handler {
		h := otelhttp.NewHandler(next, service,
			otelhttp.WithMeterProvider(t.MeterProvider()),
			otelhttp.WithTracerProvider(t.TracerProvider()),
		)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, _ := withRoute(r.Context())
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
