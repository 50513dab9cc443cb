package http

import (
	"net/http"

	"notify-dispatch/internal/handler/http/requestid"
)

const (
	// maxRequestIDLength bounds client-supplied X-Request-ID values.
	// UUIDs are 36 characters; the headroom covers client tracing schemes.
	maxRequestIDLength = 256

	// maxPathLength bounds URI paths. Idempotency keys cap at 255
	// characters, so 2KB is generous.
	maxPathLength = 2048

	// maxRequestBodyBytes bounds request bodies. Email bodies cap at
	// 10MB at validation time; the headroom covers JSON escaping and
	// the rest of the submit payload.
	maxRequestBodyBytes = 12 << 20
)

// InputValidation returns middleware that validates and limits request inputs.
// It enforces limits on:
// - X-Request-ID header size (256 bytes)
// - URI path length (2KB)
// - Request body size (12MB)
//
// This prevents DoS attacks and ensures reasonable request sizes.
func InputValidation() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// X-Request-ID はログと応答ヘッダーにそのまま流れるため長さを制限する
			if len(r.Header.Get(requestid.RequestIDHeader)) > maxRequestIDLength {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"request id header too large"}`))
				return
			}

			// Path length limit (2KB)
			// Prevents path traversal attacks and keeps URLs reasonable
			if len(r.URL.Path) > maxPathLength {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusRequestURITooLong)
				_, _ = w.Write([]byte(`{"error":"URI too long"}`))
				return
			}

			// Request body size limit (12MB)
			// Prevents memory exhaustion from large payloads
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

			next.ServeHTTP(w, r)
		})
	}
}
