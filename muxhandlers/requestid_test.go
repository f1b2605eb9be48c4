package muxhandlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/switchboard/mux"
)

var (
	uuidV4Regex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	uuidV7Regex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-7[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
)

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		config         RequestIDConfig
		incomingHeader string
		wantHeader     string
		wantGenerated  bool
	}{
		{
			name:          "generates UUID v4 by default",
			config:        RequestIDConfig{},
			wantGenerated: true,
		},
		{
			name:           "does not trust incoming by default",
			config:         RequestIDConfig{},
			incomingHeader: "existing-id",
			wantGenerated:  true,
		},
		{
			name:           "trusts incoming when configured",
			config:         RequestIDConfig{TrustIncoming: true},
			incomingHeader: "existing-id",
			wantHeader:     "existing-id",
		},
		{
			name:          "generates when trust incoming but no header",
			config:        RequestIDConfig{TrustIncoming: true},
			wantGenerated: true,
		},
		{
			name:       "custom generate func",
			config:     RequestIDConfig{GenerateFunc: func(_ *http.Request) string { return "custom-id" }},
			wantHeader: "custom-id",
		},
		{
			name:       "custom header name",
			config:     RequestIDConfig{HeaderName: "X-Trace-ID", GenerateFunc: func(_ *http.Request) string { return "trace-123" }},
			wantHeader: "trace-123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var capturedRequestHeader, capturedCtxID string

			headerName := tt.config.HeaderName
			if headerName == "" {
				headerName = "X-Request-ID"
			}

			r := newMiddlewareRouter(t, RequestIDMiddleware(tt.config), func(req *http.Request) string {
				capturedRequestHeader = req.Header.Get(headerName)
				capturedCtxID = RequestIDFromContext(req.Context())
				return ""
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.incomingHeader != "" {
				req.Header.Set(headerName, tt.incomingHeader)
			}
			w := serve(r, req)

			responseHeader := w.Header().Get(headerName)

			if tt.wantGenerated {
				assert.Regexp(t, uuidV4Regex, responseHeader)
			} else {
				assert.Equal(t, tt.wantHeader, responseHeader)
			}

			assert.Equal(t, responseHeader, capturedRequestHeader)
			assert.Equal(t, responseHeader, capturedCtxID)
		})
	}

	t.Run("each request gets unique ID", func(t *testing.T) {
		r := newMiddlewareRouter(t, RequestIDMiddleware(RequestIDConfig{}), okAction)

		id1 := serve(r, httptest.NewRequest(http.MethodGet, "/test", nil)).Header().Get("X-Request-ID")
		id2 := serve(r, httptest.NewRequest(http.MethodGet, "/test", nil)).Header().Get("X-Request-ID")

		assert.NotEmpty(t, id1)
		assert.NotEmpty(t, id2)
		assert.NotEqual(t, id1, id2)
	})

	t.Run("empty id does not set headers", func(t *testing.T) {
		var capturedCtxID string
		r := newMiddlewareRouter(t, RequestIDMiddleware(RequestIDConfig{
			GenerateFunc: func(_ *http.Request) string { return "" },
		}), func(req *http.Request) string {
			capturedCtxID = RequestIDFromContext(req.Context())
			return ""
		})

		w := serve(r, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Empty(t, capturedCtxID)
		assert.Empty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("the caller request is not modified", func(t *testing.T) {
		r := newMiddlewareRouter(t, RequestIDMiddleware(RequestIDConfig{}), okAction)
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		serve(r, req)

		assert.Empty(t, req.Header.Get("X-Request-ID"))
	})

	t.Run("error responses carry the id", func(t *testing.T) {
		r := newMiddlewareRouter(t, RequestIDMiddleware(RequestIDConfig{
			GenerateFunc: func(_ *http.Request) string { return "err-id" },
		}), func() error {
			return mux.NewHTTPError(http.StatusConflict, "taken")
		})

		w := serve(r, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "err-id", w.Header().Get("X-Request-ID"))
	})
}

func TestRequestIDFromContext(t *testing.T) {
	t.Run("returns empty for bare context", func(t *testing.T) {
		assert.Empty(t, RequestIDFromContext(context.Background()))
	})
}

func TestGenerateUUIDv4(t *testing.T) {
	t.Run("format", func(t *testing.T) {
		assert.Regexp(t, uuidV4Regex, GenerateUUIDv4(nil))
	})
}

func TestGenerateUUIDv7(t *testing.T) {
	t.Run("format", func(t *testing.T) {
		assert.Regexp(t, uuidV7Regex, GenerateUUIDv7(nil))
	})

	t.Run("time ordered", func(t *testing.T) {
		first := GenerateUUIDv7(nil)
		time.Sleep(2 * time.Millisecond)
		second := GenerateUUIDv7(nil)
		require.NotEqual(t, first, second)
		assert.Less(t, first, second)
	})
}
