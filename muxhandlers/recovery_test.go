package muxhandlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/switchboard/mux"
)

func TestRecoveryMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		action    any
		wantCode  int
		wantPanic any
	}{
		{
			name:     "no panic passes through",
			action:   okAction,
			wantCode: http.StatusOK,
		},
		{
			name:      "panic returns 500",
			action:    func() string { panic("something went wrong") },
			wantCode:  http.StatusInternalServerError,
			wantPanic: "something went wrong",
		},
		{
			name:      "panic with integer value",
			action:    func() string { panic(42) },
			wantCode:  http.StatusInternalServerError,
			wantPanic: 42,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, hook := test.NewNullLogger()
			r := newMiddlewareRouter(t, RecoveryMiddleware(RecoveryConfig{Logger: logger}), tt.action)

			w := serve(r, httptest.NewRequest(http.MethodGet, "/test", nil))

			assert.Equal(t, tt.wantCode, w.Code)

			if tt.wantPanic == nil {
				assert.Empty(t, hook.AllEntries())
				return
			}

			entry := hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, logrus.ErrorLevel, entry.Level)
			assert.Equal(t, "panic recovered", entry.Message)
			assert.Equal(t, tt.wantPanic, entry.Data["panic"])
			assert.Equal(t, "/test", entry.Data["path"])
			assert.NotContains(t, entry.Data, "stack")
		})
	}

	t.Run("panic becomes an HTTPError wrapping the cause", func(t *testing.T) {
		cause := errors.New("boom")
		r := newMiddlewareRouter(t, RecoveryMiddleware(RecoveryConfig{}), func() string { panic(cause) })

		resp, err := r.Dispatch(httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Nil(t, resp)

		var httpErr *mux.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode())
		assert.ErrorIs(t, err, cause)
	})

	t.Run("stack is logged when enabled", func(t *testing.T) {
		logger, hook := test.NewNullLogger()
		r := newMiddlewareRouter(t, RecoveryMiddleware(RecoveryConfig{Logger: logger, Stack: true}), func() string { panic("x") })

		serve(r, httptest.NewRequest(http.MethodGet, "/test", nil))

		entry := hook.LastEntry()
		require.NotNil(t, entry)
		assert.Contains(t, entry.Data["stack"], "goroutine")
	})

	t.Run("panics in later middleware are recovered", func(t *testing.T) {
		r := mux.NewRouter()
		r.RegisterMiddleware("recover", RecoveryMiddleware(RecoveryConfig{}))
		r.RegisterMiddleware("explode", mux.MiddlewareFunc(func(_ *http.Request, _ mux.Handler) (*mux.Response, error) {
			panic("middleware")
		}))
		r.Get("/test", okAction).Middleware("recover", "explode")

		w := serve(r, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("ErrAbortHandler is re-panicked", func(t *testing.T) {
		r := newMiddlewareRouter(t, RecoveryMiddleware(RecoveryConfig{}), func() string { panic(http.ErrAbortHandler) })

		assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
			_, _ = r.Dispatch(httptest.NewRequest(http.MethodGet, "/test", nil))
		})
	})
}

func BenchmarkRecoveryMiddleware(b *testing.B) {
	r := newMiddlewareRouter(b, RecoveryMiddleware(RecoveryConfig{}), okAction)
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	b.ResetTimer()
	for b.Loop() {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
}
