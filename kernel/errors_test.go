package kernel

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/switchboard/mux"
	"github.com/vitalvas/switchboard/muxhandlers"
)

func decodeJSON(t *testing.T, resp *mux.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body, &body))
	return body
}

type teapot struct{}

func (teapot) Error() string { return "teapot" }

func (teapot) ToResponse(_ *http.Request) (*mux.Response, error) {
	return mux.Text(http.StatusTeapot, "short and stout"), nil
}

func TestErrorHandlerRender(t *testing.T) {
	jsonReq := newRequest("/api/users")
	htmlReq := newRequest("/users", "Accept", "text/html")

	t.Run("ResponseError yields its response", func(t *testing.T) {
		h := &ErrorHandler{}
		want := mux.Text(http.StatusAccepted, "later")

		assert.Same(t, want, h.Render(jsonReq, mux.Abort(want)))
	})

	t.Run("responsable errors render themselves", func(t *testing.T) {
		h := &ErrorHandler{}
		resp := h.Render(htmlReq, fmt.Errorf("wrapped: %w", teapot{}))

		assert.Equal(t, http.StatusTeapot, resp.StatusCode)
		assert.Equal(t, "short and stout", string(resp.Body))
	})

	t.Run("http error as json", func(t *testing.T) {
		h := &ErrorHandler{}
		err := &mux.HTTPError{Code: http.StatusConflict, Message: "name taken", Header: http.Header{"X-Reason": {"dup"}}}

		resp := h.Render(jsonReq, err)

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.Equal(t, "dup", resp.Header.Get("X-Reason"))
		assert.Equal(t, map[string]any{"message": "name taken"}, decodeJSON(t, resp))
	})

	t.Run("routing errors keep their status and headers", func(t *testing.T) {
		h := &ErrorHandler{}
		err := &mux.MethodNotAllowedError{Method: "PUT", Path: "/api/users", Allowed: []string{"GET", "HEAD"}}

		resp := h.Render(jsonReq, err)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "GET, HEAD", resp.Header.Get("Allow"))
		assert.Equal(t, "Method Not Allowed", decodeJSON(t, resp)["message"])
	})

	t.Run("internal errors hide their message", func(t *testing.T) {
		h := &ErrorHandler{}
		resp := h.Render(jsonReq, errors.New("database password leaked"))

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, map[string]any{"message": "Server Error"}, decodeJSON(t, resp))
	})

	t.Run("debug json carries the chain", func(t *testing.T) {
		h := &ErrorHandler{Debug: true}
		cause := errors.New("connection refused")
		resp := h.Render(jsonReq, fmt.Errorf("load user: %w", cause))

		body := decodeJSON(t, resp)
		assert.Equal(t, "load user: connection refused", body["message"])
		assert.Equal(t, "*fmt.wrapError", body["exception"])
		assert.Len(t, body["chain"], 2)
	})

	t.Run("html page", func(t *testing.T) {
		h := &ErrorHandler{}
		resp := h.Render(htmlReq, &mux.NotFoundError{Path: "/users"})

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
		assert.Contains(t, string(resp.Body), "<h1>404 | Not Found</h1>")
		assert.NotContains(t, string(resp.Body), "<pre>")
	})

	t.Run("debug html escapes the chain", func(t *testing.T) {
		h := &ErrorHandler{Debug: true}
		resp := h.Render(htmlReq, errors.New("<script>alert(1)</script>"))

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Contains(t, string(resp.Body), "&lt;script&gt;")
		assert.NotContains(t, string(resp.Body), "<script>")
	})

	t.Run("unauthenticated json", func(t *testing.T) {
		h := &ErrorHandler{}
		err := &mux.HTTPError{
			Code:    http.StatusUnauthorized,
			Message: "Unauthenticated.",
			Header:  http.Header{"Www-Authenticate": {"Bearer"}},
			Err:     muxhandlers.ErrUnauthenticated,
		}

		resp := h.Render(jsonReq, err)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
		assert.Equal(t, map[string]any{"message": "Unauthenticated."}, decodeJSON(t, resp))
	})

	t.Run("unauthenticated html redirects to login", func(t *testing.T) {
		err := fmt.Errorf("guard: %w", muxhandlers.ErrUnauthenticated)

		resp := (&ErrorHandler{}).Render(htmlReq, err)
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/login", resp.Header.Get("Location"))

		resp = (&ErrorHandler{LoginURL: "/signin"}).Render(htmlReq, err)
		assert.Equal(t, "/signin", resp.Header.Get("Location"))
	})

	t.Run("custom format decision", func(t *testing.T) {
		h := &ErrorHandler{ShouldReturnJSON: func(*http.Request) bool { return true }}
		resp := h.Render(htmlReq, errors.New("x"))

		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	})
}

func TestErrorHandlerReport(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"plain error", errors.New("boom"), true},
		{"server http error", mux.NewHTTPError(http.StatusBadGateway, "upstream"), true},
		{"client http error", mux.NewHTTPError(http.StatusBadRequest, "bad"), false},
		{"not found", &mux.NotFoundError{Path: "/x"}, false},
		{"abort", mux.Abort(mux.NoContent()), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, hook := test.NewNullLogger()
			h := &ErrorHandler{Logger: logger}

			assert.Equal(t, tt.want, h.ShouldReport(tt.err))

			h.Report(newRequest("/users"), tt.err)
			if !tt.want {
				assert.Empty(t, hook.AllEntries())
				return
			}

			entry := hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, logrus.ErrorLevel, entry.Level)
			assert.Equal(t, "request failed", entry.Message)
			assert.Equal(t, "/users", entry.Data["path"])
			assert.Equal(t, tt.err, entry.Data[logrus.ErrorKey])
		})
	}

	t.Run("nil logger is silent", func(t *testing.T) {
		assert.NotPanics(t, func() {
			(&ErrorHandler{}).Report(newRequest("/"), errors.New("x"))
		})
	})
}
