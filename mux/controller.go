package mux

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cast"
)

// ControllerFactory builds a controller. It receives the router container
// so it can pull the controller's own dependencies.
type ControllerFactory func(c Container) (any, error)

// Controllers is the registry of controllers routes can name in
// "Controller@method" actions.
type Controllers struct {
	mu        sync.RWMutex
	factories map[string]ControllerFactory
}

// NewControllers returns an empty registry.
func NewControllers() *Controllers {
	return &Controllers{factories: make(map[string]ControllerFactory)}
}

// Register adds a controller factory under name, replacing any earlier one.
func (c *Controllers) Register(name string, factory ControllerFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = factory
}

// Instance registers a controller value that is shared by every request.
func (c *Controllers) Instance(name string, controller any) {
	c.Register(name, func(Container) (any, error) {
		return controller, nil
	})
}

// Has reports whether a controller is registered under name.
func (c *Controllers) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.factories[name]
	return ok
}

// Names returns the registered controller names, sorted.
func (c *Controllers) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.factories))
	for name := range c.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Make builds the controller registered under name.
func (c *Controllers) Make(name string, container Container) (any, error) {
	c.mu.RLock()
	factory, ok := c.factories[name]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("mux: controller %q is not registered: %w", name, ErrUnresolvable)
	}

	ctrl, err := factory(container)
	if err != nil {
		return nil, fmt.Errorf("mux: building controller %q: %w", name, err)
	}
	if ctrl == nil {
		return nil, fmt.Errorf("mux: controller %q factory returned nil: %w", name, ErrUnresolvable)
	}
	return ctrl, nil
}

// ControllerMiddleware is a middleware declared by a controller, limited to
// some of its methods with Only or Except.
type ControllerMiddleware struct {
	Middleware string
	Only       []string
	Except     []string
}

// MiddlewareDeclarer is implemented by controllers that declare middleware
// for their own methods.
type MiddlewareDeclarer interface {
	Middleware() []ControllerMiddleware
}

var (
	contextType = reflect.TypeFor[context.Context]()
	requestType = reflect.TypeFor[*http.Request]()
	routeType   = reflect.TypeFor[*Route]()
	errorType   = reflect.TypeFor[error]()
)

// ControllerResolver calls controller methods and inline handlers, filling
// their parameters from the request, the bound route and the container.
//
// Parameters are resolved in declaration order:
//   - context.Context, *http.Request and *Route get the request values
//   - strings, booleans and numbers take the route placeholders in order:
//     the first scalar parameter gets the first placeholder, and so on;
//     a pointer to a scalar is optional and nil when the placeholder is
//     not bound
//   - anything else is resolved from the container, fresh on every call
//
// Accepted return shapes are (), (T), (error) and (T, error).
type ControllerResolver struct {
	container Container
}

// NewControllerResolver returns a resolver using container for services.
// A nil container resolves nothing.
func NewControllerResolver(container Container) *ControllerResolver {
	return &ControllerResolver{container: container}
}

// Dispatch calls method on controller.
func (cr *ControllerResolver) Dispatch(req *http.Request, route *Route, controller any, method string) (any, error) {
	fn, name, ok := findMethod(controller, method)
	if !ok {
		return nil, fmt.Errorf("mux: method %s does not exist on %T: %w", method, controller, ErrUnresolvable)
	}
	return cr.invoke(req, route, fn, fmt.Sprintf("%T@%s", controller, name))
}

// Call runs an inline handler.
func (cr *ControllerResolver) Call(req *http.Request, route *Route, fn any) (any, error) {
	switch f := fn.(type) {
	case Handler:
		return unpackResponse(f(req))
	case func(*http.Request) (*Response, error):
		return unpackResponse(f(req))
	case func(*http.Request) (any, error):
		return f(req)
	}

	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return nil, fmt.Errorf("mux: handler %T is not a function", fn)
	}
	return cr.invoke(req, route, v, "Closure")
}

// unpackResponse keeps a nil *Response from turning into a non-nil any.
func unpackResponse(resp *Response, err error) (any, error) {
	if resp == nil {
		return nil, err
	}
	return resp, err
}

// HasMethod reports whether controller has a callable method with a valid
// return shape.
func (cr *ControllerResolver) HasMethod(controller any, method string) bool {
	fn, _, ok := findMethod(controller, method)
	return ok && checkResults(fn.Type()) == nil
}

// GetMiddleware returns the middleware a controller declares for method,
// honoring the Only and Except lists. Method names compare case-insensitively.
func (cr *ControllerResolver) GetMiddleware(controller any, method string) []string {
	decl, ok := controller.(MiddlewareDeclarer)
	if !ok {
		return nil
	}

	var out []string
	for _, m := range decl.Middleware() {
		if methodExcluded(m, method) {
			continue
		}
		out = append(out, m.Middleware)
	}
	return out
}

func methodExcluded(m ControllerMiddleware, method string) bool {
	contains := func(list []string) bool {
		for _, v := range list {
			if strings.EqualFold(v, method) {
				return true
			}
		}
		return false
	}
	if len(m.Only) > 0 && !contains(m.Only) {
		return true
	}
	return len(m.Except) > 0 && contains(m.Except)
}

// findMethod looks a method up by its exact name, then with the first letter
// upper-cased so "show" finds Show.
func findMethod(controller any, method string) (reflect.Value, string, bool) {
	if controller == nil || method == "" {
		return reflect.Value{}, "", false
	}
	v := reflect.ValueOf(controller)
	for _, name := range []string{method, upperFirst(method)} {
		if m := v.MethodByName(name); m.IsValid() {
			return m, name, true
		}
	}
	return reflect.Value{}, "", false
}

func (cr *ControllerResolver) invoke(req *http.Request, route *Route, fn reflect.Value, where string) (any, error) {
	t := fn.Type()
	if err := checkResults(t); err != nil {
		return nil, fmt.Errorf("mux: %s: %w", where, err)
	}

	args, err := cr.resolveParameters(req, route, t, where)
	if err != nil {
		return nil, err
	}

	return unpackResults(fn.Call(args))
}

func (cr *ControllerResolver) resolveParameters(req *http.Request, route *Route, t reflect.Type, where string) ([]reflect.Value, error) {
	n := t.NumIn()
	if t.IsVariadic() {
		n--
	}

	var names []string
	if route != nil {
		names = route.parameterNames
	}

	args := make([]reflect.Value, 0, n)
	scalar := 0
	for i := 0; i < n; i++ {
		pt := t.In(i)
		switch {
		case pt == contextType:
			args = append(args, reflect.ValueOf(req.Context()))
		case pt == requestType:
			args = append(args, reflect.ValueOf(req))
		case pt == routeType:
			args = append(args, reflect.ValueOf(route))
		case isScalar(pt) && scalar < len(names):
			v, err := pathParameter(route, names[scalar], pt, where)
			if err != nil {
				return nil, err
			}
			scalar++
			args = append(args, v)
		default:
			v, err := cr.service(pt, fmt.Sprintf("#%d", i), where)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
	}
	return args, nil
}

func (cr *ControllerResolver) service(t reflect.Type, param, where string) (reflect.Value, error) {
	if cr.container == nil {
		return reflect.Value{}, &DependencyResolutionError{Method: where, Parameter: param, Type: t, Err: ErrUnresolvable}
	}
	v, err := cr.container.Resolve(t)
	if err != nil {
		return reflect.Value{}, &DependencyResolutionError{Method: where, Parameter: param, Type: t, Err: err}
	}
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(t) {
		return reflect.Value{}, &DependencyResolutionError{
			Method: where, Parameter: param, Type: t,
			Err: fmt.Errorf("container returned %T: %w", v, ErrUnresolvable),
		}
	}
	return rv, nil
}

func pathParameter(route *Route, name string, t reflect.Type, where string) (reflect.Value, error) {
	elem, optional := t, false
	if t.Kind() == reflect.Pointer {
		elem, optional = t.Elem(), true
	}

	raw, ok := route.parameters[name]
	if !ok || raw == "" {
		if optional {
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, &DependencyResolutionError{Method: where, Parameter: name, Type: t, Err: ErrMissingParameter}
	}

	v, err := convertScalar(raw, elem)
	if err != nil {
		return reflect.Value{}, &DependencyResolutionError{Method: where, Parameter: name, Type: t, Err: err}
	}
	if optional {
		p := reflect.New(elem)
		p.Elem().Set(v)
		return p, nil
	}
	return v, nil
}

func isScalar(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// convertScalar converts a path parameter to t. Named types such as
// `type UserID int64` convert from their underlying kind.
func convertScalar(raw string, t reflect.Type) (reflect.Value, error) {
	var (
		v   any
		err error
	)
	switch t.Kind() {
	case reflect.String:
		v = raw
	case reflect.Bool:
		v, err = cast.ToBoolE(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err = cast.ToInt64E(raw)
		if err == nil && reflect.Zero(t).OverflowInt(v.(int64)) {
			err = fmt.Errorf("value %q overflows %s", raw, t)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err = cast.ToUint64E(raw)
		if err == nil && reflect.Zero(t).OverflowUint(v.(uint64)) {
			err = fmt.Errorf("value %q overflows %s", raw, t)
		}
	case reflect.Float32, reflect.Float64:
		v, err = cast.ToFloat64E(raw)
	default:
		err = fmt.Errorf("unsupported parameter kind %s", t.Kind())
	}
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(v).Convert(t), nil
}

// checkResults validates the return shape of a handler or controller method.
func checkResults(t reflect.Type) error {
	switch t.NumOut() {
	case 0, 1:
		return nil
	case 2:
		if t.Out(1) == errorType {
			return nil
		}
	}
	return fmt.Errorf("unsupported return signature %s", t)
}

func unpackResults(out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if out[0].Type() == errorType {
			return nil, asError(out[0])
		}
		return valueOf(out[0]), nil
	default:
		return valueOf(out[0]), asError(out[1])
	}
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}

// valueOf returns the interface value of v, mapping nil pointers, maps and
// slices to a plain nil.
func valueOf(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return nil
		}
	}
	return v.Interface()
}

// validateHandler reports whether fn can be used as an inline handler.
func validateHandler(fn any) error {
	if fn == nil {
		return errors.New("mux: handler is nil")
	}
	t := reflect.TypeOf(fn)
	if t.Kind() != reflect.Func {
		return fmt.Errorf("mux: handler %T is not a function", fn)
	}
	if err := checkResults(t); err != nil {
		return fmt.Errorf("mux: handler: %w", err)
	}
	return nil
}
