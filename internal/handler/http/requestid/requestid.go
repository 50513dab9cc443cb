// Package requestid assigns every inbound request an ID so a submit can
// be followed through logs, traces, and error responses.
package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// contextKey keeps the context entry private to this package.
type contextKey string

const (
	// RequestIDKey is the context key the middleware stores the ID under.
	RequestIDKey contextKey = "request_id"
	// RequestIDHeader carries the ID on both request and response.
	RequestIDHeader = "X-Request-ID"
)

// FromContext returns the request ID, or "" outside the middleware.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestID stores an ID on the context. Exposed for tests and for
// code paths (worker, scheduler) that run outside an HTTP request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// Middleware honors a caller-supplied X-Request-ID, minting a UUID v4
// when absent, and echoes the ID on the response so clients can quote it
// when reporting a failed delivery.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		// クライアントが追跡できるようレスポンスにも載せる
		w.Header().Set(RequestIDHeader, requestID)

		ctx := WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
