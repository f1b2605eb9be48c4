package muxhandlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vitalvas/switchboard/mux"
)

// newMiddlewareRouter returns a router with mw registered as "under-test"
// and declared on "/test" for the given methods.
func newMiddlewareRouter(tb testing.TB, mw mux.Middleware, action any, methods ...string) *mux.Router {
	tb.Helper()

	if len(methods) == 0 {
		methods = []string{http.MethodGet}
	}

	r := mux.NewRouter()
	r.RegisterMiddleware("under-test", mw)
	r.Match(methods, "/test", action).Middleware("under-test")
	require.NoError(tb, r.Finalize())

	return r
}

// serve runs req through r and returns the recorded response.
func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// globalPipeline runs req through mw placed in front of the router, the way
// the kernel runs global middleware.
func globalPipeline(r *mux.Router, mw mux.Middleware, req *http.Request) (*mux.Response, error) {
	return mux.NewPipeline().Send(req).Through(mw).Then(r.Dispatch)
}

func okAction() string { return "ok" }
