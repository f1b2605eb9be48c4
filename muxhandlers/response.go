package muxhandlers

import (
	"net/http"

	"github.com/vitalvas/switchboard/mux"
)

// statusResponse returns a plain-text response carrying the status text for
// code, in the shape http.Error writes.
func statusResponse(code int) *mux.Response {
	resp := mux.NewResponse(code, nil, []byte(http.StatusText(code)+"\n"))
	resp.Header.Set("Content-Type", "text/plain; charset=utf-8")
	resp.Header.Set("X-Content-Type-Options", "nosniff")
	return resp
}

// methodSet builds a lookup set from a method list, falling back to def
// when methods is nil.
func methodSet(methods, def []string) map[string]struct{} {
	if methods == nil {
		methods = def
	}
	set := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		set[m] = struct{}{}
	}
	return set
}
