package mux

import (
	"context"
	"net/http"
)

// RouteAttribute is the attribute name under which the matched route is
// exposed through Attribute.
const RouteAttribute = "route"

// routeContextKey is an unexported type for the route context key.
type routeContextKey struct{}

// ctxKey is the single context key used to store both route and vars.
var ctxKey = routeContextKey{}

// attributeKey namespaces request attributes inside the context.
type attributeKey string

// routeContext holds the matched route and extracted variables.
type routeContext struct {
	route *Route
	vars  map[string]string
}

// Vars returns the bound route parameters for the current request, if any.
func Vars(r *http.Request) map[string]string {
	if rc, ok := r.Context().Value(ctxKey).(*routeContext); ok {
		return rc.vars
	}
	return nil
}

// VarGet returns the value of a single route parameter by name and a boolean
// indicating whether the parameter was bound.
func VarGet(r *http.Request, name string) (string, bool) {
	if rc, ok := r.Context().Value(ctxKey).(*routeContext); ok && rc.vars != nil {
		val, exists := rc.vars[name]
		return val, exists
	}
	return "", false
}

// CurrentRoute returns the bound route for the current request, if any.
// The route is request-scoped: it is a bound copy of the registered route.
func CurrentRoute(r *http.Request) *Route {
	if rc, ok := r.Context().Value(ctxKey).(*routeContext); ok {
		return rc.route
	}
	return nil
}

// WithAttribute returns a shallow copy of r carrying the named attribute.
func WithAttribute(r *http.Request, name string, value any) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), attributeKey(name), value))
}

// Attribute returns a request attribute. Explicit attributes set with
// WithAttribute take precedence over the bound route and its parameters.
func Attribute(r *http.Request, name string) (any, bool) {
	if v := r.Context().Value(attributeKey(name)); v != nil {
		return v, true
	}

	rc, ok := r.Context().Value(ctxKey).(*routeContext)
	if !ok {
		return nil, false
	}
	if name == RouteAttribute && rc.route != nil {
		return rc.route, true
	}
	if v, ok := rc.vars[name]; ok {
		return v, true
	}
	return nil, false
}

// SetURLVars sets the route parameters for the given request, returning the
// modified request. This is intended for testing route handlers.
func SetURLVars(r *http.Request, val map[string]string) *http.Request {
	var route *Route
	if rc, ok := r.Context().Value(ctxKey).(*routeContext); ok {
		route = rc.route
	}
	return setRouteContext(r, route, val)
}

// setRouteContext stores both the bound route and its parameters in the
// request context using a single WithContext call.
func setRouteContext(r *http.Request, route *Route, vars map[string]string) *http.Request {
	rc := &routeContext{route: route, vars: vars}
	return r.WithContext(context.WithValue(r.Context(), ctxKey, rc))
}
