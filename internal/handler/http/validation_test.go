package http

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validate runs req through InputValidation in front of a probe handler and
// reports whether the probe was reached.
func validate(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	reached := false
	handler := InputValidation()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, reached
}

func TestInputValidation_AcceptsWellFormedRequests(t *testing.T) {
	tests := []struct {
		name string
		req  func() *http.Request
	}{
		{"plain submit", func() *http.Request {
			req := httptest.NewRequest(http.MethodPost, "/notifications", strings.NewReader("valid body"))
			req.Header.Set("X-Request-ID", "client-trace-123")
			return req
		}},
		{"no request id header", func() *http.Request {
			return httptest.NewRequest(http.MethodGet, "/deliveries", nil)
		}},
		{"UUID request id", func() *http.Request {
			req := httptest.NewRequest(http.MethodGet, "/deliveries", nil)
			req.Header.Set("X-Request-ID", "550e8400-e29b-41d4-a716-446655440000")
			return req
		}},
		{"request id at the 256 byte limit", func() *http.Request {
			req := httptest.NewRequest(http.MethodGet, "/deliveries", nil)
			req.Header.Set("X-Request-ID", strings.Repeat("a", 256))
			return req
		}},
		{"path at the 2KB limit", func() *http.Request {
			return httptest.NewRequest(http.MethodGet, "/"+strings.Repeat("a", 2047), nil)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, reached := validate(t, tt.req())
			assert.True(t, reached, "handler should be reached")
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestInputValidation_OversizedRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/deliveries", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("a", 257))

	rec, reached := validate(t, req)

	require.False(t, reached)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "request id header too large")
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestInputValidation_OversizedPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/deliveries/"+strings.Repeat("a", 2049), nil)

	rec, reached := validate(t, req)

	require.False(t, reached)
	assert.Equal(t, http.StatusRequestURITooLong, rec.Code)
	assert.Contains(t, rec.Body.String(), "URI too long")
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestInputValidation_CapsBodyReads(t *testing.T) {
	// 12MBの上限を超えたボディはMaxBytesReaderが読み込み時に弾く
	var readErr error
	handler := InputValidation()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/notifications", bytes.NewReader(make([]byte, 13<<20)))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Error(t, readErr, "reading past the cap should fail")
}

func TestInputValidation_BodyWithinCapReadsFully(t *testing.T) {
	var got []byte
	handler := InputValidation()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		got = body
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notifications", strings.NewReader("test data")))

	assert.Equal(t, "test data", string(got))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInputValidation_FirstViolationWins(t *testing.T) {
	// リクエストIDチェックがパス長チェックより先に走る
	req := httptest.NewRequest(http.MethodGet, "/deliveries/"+strings.Repeat("b", 2049), nil)
	req.Header.Set("X-Request-ID", strings.Repeat("a", 257))

	rec, reached := validate(t, req)

	require.False(t, reached)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "request id header too large")
}
