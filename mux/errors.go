package mux

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
)

// ErrMethodMismatch is returned when the request path matches a route but the
// method does not. Triggers 405 Method Not Allowed per RFC 9110 Section 15.5.6.
var ErrMethodMismatch = errors.New("method is not allowed")

// ErrNotFound is returned when no route match is found. Triggers 404 Not Found
// per RFC 9110 Section 15.5.5.
var ErrNotFound = errors.New("no matching route was found")

// ErrRouteNotBound is returned when route parameters are accessed before the
// route was matched against a request.
var ErrRouteNotBound = errors.New("route is not bound")

// ErrUnresolvable is wrapped by errors raised when a controller, service or
// middleware identifier has no registered provider.
var ErrUnresolvable = errors.New("dependency cannot be resolved")

// ErrMissingParameter is wrapped by DependencyResolutionError when a required
// path parameter was not bound for the current request.
var ErrMissingParameter = errors.New("missing required parameter")

// StatusCoder is implemented by errors that carry enough data for an external
// renderer to build an HTTP response.
type StatusCoder interface {
	StatusCode() int
	Headers() http.Header
}

// HTTPError is a generic HTTP failure with a status code, optional headers
// and an optional wrapped cause.
type HTTPError struct {
	Code    int
	Message string
	Header  http.Header
	Err     error
}

// NewHTTPError returns an HTTPError with the given status code and message.
func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{Code: code, Message: message}
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Code)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// StatusCode implements StatusCoder.
func (e *HTTPError) StatusCode() int {
	return e.Code
}

// Headers implements StatusCoder.
func (e *HTTPError) Headers() http.Header {
	if e.Header == nil {
		return http.Header{}
	}
	return e.Header
}

// NotFoundError reports that no route matches the request path.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("the route %s could not be found", e.Path)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// StatusCode implements StatusCoder.
func (e *NotFoundError) StatusCode() int {
	return http.StatusNotFound
}

// Headers implements StatusCoder.
func (e *NotFoundError) Headers() http.Header {
	return http.Header{}
}

// MethodNotAllowedError reports that the request path matches at least one
// route but none of them accepts the request method. Allowed lists the
// methods that would have matched.
type MethodNotAllowedError struct {
	Method  string
	Path    string
	Allowed []string
}

func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("the %s method is not supported for route %s. Supported methods: %s",
		e.Method, e.Path, strings.Join(e.Allowed, ", "))
}

func (e *MethodNotAllowedError) Unwrap() error {
	return ErrMethodMismatch
}

// StatusCode implements StatusCoder.
func (e *MethodNotAllowedError) StatusCode() int {
	return http.StatusMethodNotAllowed
}

// Headers implements StatusCoder. RFC 9110 Section 15.5.6 requires the Allow
// header on every 405 response.
func (e *MethodNotAllowedError) Headers() http.Header {
	h := http.Header{}
	h.Set("Allow", strings.ToUpper(strings.Join(e.Allowed, ", ")))
	return h
}

// DependencyResolutionError is returned when a controller or handler
// parameter cannot be satisfied from the bound route parameters or the
// service container.
type DependencyResolutionError struct {
	Method    string
	Parameter string
	Type      reflect.Type
	Err       error
}

func (e *DependencyResolutionError) Error() string {
	return fmt.Sprintf("mux: unresolvable dependency resolving [%s %s] in %s: %v",
		e.Parameter, e.Type, e.Method, e.Err)
}

func (e *DependencyResolutionError) Unwrap() error {
	return e.Err
}

// ResponseError carries a finished response out of a handler. It is the only
// error intercepted by the router: the route execution boundary converts it
// back into a normal response.
type ResponseError struct {
	Response *Response
}

func (e *ResponseError) Error() string {
	if e.Response == nil {
		return "mux: response short-circuit"
	}
	return fmt.Sprintf("mux: response short-circuit with status %d", e.Response.StatusCode)
}

// Abort returns an error that makes the router reply with resp as-is.
func Abort(resp *Response) error {
	return &ResponseError{Response: resp}
}
