// Package responsewriter captures the status code and body size of a
// response so the logging and metrics middleware can report them after
// the handler returns.
package responsewriter

import (
	"net/http"
)

// ResponseWriter wraps http.ResponseWriter and records what was sent.
type ResponseWriter struct {
	http.ResponseWriter
	statusCode    int
	bytesWritten  int
	headerWritten bool
}

// Wrap instruments w. The recorded status defaults to 200 because the
// stdlib sends 200 when a handler writes without calling WriteHeader.
func Wrap(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader records the first status code; repeat calls are dropped
// rather than tripping the stdlib's superfluous-WriteHeader log line.
func (w *ResponseWriter) WriteHeader(statusCode int) {
	if w.headerWritten {
		return
	}
	w.statusCode = statusCode
	w.headerWritten = true
	w.ResponseWriter.WriteHeader(statusCode)
}

// Write forwards the body and accumulates its size.
func (w *ResponseWriter) Write(b []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += n
	return n, err
}

// StatusCode returns the status sent to the client.
func (w *ResponseWriter) StatusCode() int {
	return w.statusCode
}

// BytesWritten returns the body size sent so far.
func (w *ResponseWriter) BytesWritten() int {
	return w.bytesWritten
}

// Unwrap exposes the inner writer for http.ResponseController.
func (w *ResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
