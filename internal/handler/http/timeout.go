package http

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Timeout bounds handler execution time. The wrapped handler runs with a
// deadline context; if it has not finished when the deadline fires, the
// client gets 504 and any later writes from the handler goroutine are
// swallowed. Exactly one side ever touches the underlying ResponseWriter.
func Timeout(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()

			dw := &deadlineWriter{inner: w}
			done := make(chan struct{})

			go func() {
				defer close(done)
				next.ServeHTTP(dw, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				dw.expire()
			}
		})
	}
}

// deadlineWriter serializes the race between the handler goroutine and the
// timeout branch. After expire wins, handler writes return
// http.ErrHandlerTimeout.
type deadlineWriter struct {
	inner http.ResponseWriter

	mu      sync.Mutex
	expired bool
	wrote   bool
}

// expire emits the 504 response unless the handler already produced output.
func (d *deadlineWriter) expire() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.expired = true
	if d.wrote {
		return
	}
	d.inner.Header().Set("Content-Type", "application/json")
	d.inner.WriteHeader(http.StatusGatewayTimeout)
	_, _ = d.inner.Write([]byte(`{"error":"request timeout"}`))
}

func (d *deadlineWriter) Header() http.Header {
	return d.inner.Header()
}

func (d *deadlineWriter) WriteHeader(statusCode int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.expired || d.wrote {
		return
	}
	d.wrote = true
	d.inner.WriteHeader(statusCode)
}

func (d *deadlineWriter) Write(data []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.expired {
		return 0, http.ErrHandlerTimeout
	}
	if !d.wrote {
		d.wrote = true
		d.inner.WriteHeader(http.StatusOK)
	}
	return d.inner.Write(data)
}
