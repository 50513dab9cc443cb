// Package tracing provides OpenTelemetry tracing integration.
//
// This package provides distributed tracing capabilities using OpenTelemetry.
//
// Key features:
//   - Automatic HTTP request tracing via middleware
//   - W3C Trace Context propagation from incoming requests
//   - Trace ID exposure in response headers (X-Trace-Id)
//   - Span creation for dispatch operations
//
// Example usage:
//
//	import "notify-dispatch/internal/observability/tracing"
//
//	func main() {
//	    mux := http.NewServeMux()
//	    handler := tracing.Middleware(mux)
//	    http.ListenAndServe(":8080", handler)
//	}
//
//	func executeAttempt(ctx context.Context) {
//	    ctx, span := tracing.GetTracer().Start(ctx, "execute-attempt")
//	    defer span.End()
//	    // ... call the provider ...
//	}
package tracing
