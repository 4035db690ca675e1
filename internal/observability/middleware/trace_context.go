package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TraceContextExtraction reads W3C traceparent/tracestate headers into the request
// context. No spans are created; the IDs only correlate logs with the caller's trace.
func TraceContextExtraction(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TraceContextInjection copies the trace context of each outgoing request's context into
// its headers, so the upstream sees the same trace as the client.
func TraceContextInjection(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		carrier := propagation.HeaderCarrier(req.Header.Clone())
		otel.GetTextMapPropagator().Inject(req.Context(), carrier)
		if len(carrier) == len(req.Header) {
			return base.RoundTrip(req)
		}
		// RoundTrippers must not modify the caller's request.
		out := req.Clone(req.Context())
		out.Header = http.Header(carrier)
		return base.RoundTrip(out)
	})
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }
