package mux

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Verbs are the methods registered by Any.
var Verbs = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
}

// Router registers routes and dispatches requests to them.
//
// Routes are registered first, then the router is finalized, either
// explicitly with Finalize or on the first Dispatch. After that the route
// table is read-only and safe for concurrent dispatch:
//
//	r := mux.NewRouter()
//	r.Controllers().Register("UserController", newUserController)
//	r.AliasMiddleware("auth", "authenticate")
//	r.Get("/users/{user}", "UserController@show").Name("users.show")
//	http.ListenAndServe(":8080", r)
type Router struct {
	root        *Group
	routes      *RouteCollection
	controllers *Controllers
	container   Container
	resolver    *ControllerResolver
	logger      logrus.FieldLogger

	mu             sync.RWMutex
	middleware     map[string]Middleware
	aliases        map[string]string
	groups         map[string][]string
	priority       []string
	skipMiddleware bool

	finalizeMu  sync.Mutex
	finalized   atomic.Bool
	finalizeErr error
}

// Option configures a Router.
type Option func(*Router)

// WithContainer sets the container used to build controllers and resolve
// action parameters.
func WithContainer(c Container) Option {
	return func(r *Router) {
		r.container = c
	}
}

// WithLogger sets the logger. By default log output is discarded.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithControllers sets the controller registry.
func WithControllers(c *Controllers) Option {
	return func(r *Router) {
		if c != nil {
			r.controllers = c
		}
	}
}

// NewRouter returns a new router instance.
func NewRouter(opts ...Option) *Router {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	r := &Router{
		routes:      NewRouteCollection(),
		controllers: NewControllers(),
		container:   NewServiceMap(),
		logger:      discard,
		middleware:  make(map[string]Middleware),
		aliases:     make(map[string]string),
		groups:      make(map[string][]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.root = &Group{router: r}
	r.routes.onChange = func() { r.finalized.Store(false) }
	r.resolver = NewControllerResolver(r.container)
	return r
}

// --- Registration ---

// Get registers a GET route. HEAD is added automatically.
func (r *Router) Get(uri string, action any) *Route { return r.root.Get(uri, action) }

// Post registers a POST route.
func (r *Router) Post(uri string, action any) *Route { return r.root.Post(uri, action) }

// Put registers a PUT route.
func (r *Router) Put(uri string, action any) *Route { return r.root.Put(uri, action) }

// Patch registers a PATCH route.
func (r *Router) Patch(uri string, action any) *Route { return r.root.Patch(uri, action) }

// Delete registers a DELETE route.
func (r *Router) Delete(uri string, action any) *Route { return r.root.Delete(uri, action) }

// Options registers an OPTIONS route.
func (r *Router) Options(uri string, action any) *Route { return r.root.Options(uri, action) }

// Any registers a route for every verb in Verbs.
func (r *Router) Any(uri string, action any) *Route { return r.root.Any(uri, action) }

// Match registers a route for the given methods.
func (r *Router) Match(methods []string, uri string, action any) *Route {
	return r.root.Match(methods, uri, action)
}

// Group creates a top-level group and passes it to each fn.
func (r *Router) Group(attrs GroupAttributes, fns ...func(*Group)) *Group {
	return r.root.Group(attrs, fns...)
}

// Prefix returns a top-level group with the given URI prefix.
func (r *Router) Prefix(prefix string) *Group {
	return r.root.Prefix(prefix)
}

// Name returns a top-level group with the given route name prefix.
func (r *Router) Name(as string) *Group {
	return r.root.Name(as)
}

// Middleware returns a top-level group declaring the given middleware.
func (r *Router) Middleware(names ...string) *Group {
	return r.root.Middleware(names...)
}

// Controller returns a top-level group whose bare actions target controller.
func (r *Router) Controller(controller string) *Group {
	return r.root.Controller(controller)
}

// Resource registers the CRUD routes of an API resource. See Group.Resource.
func (r *Router) Resource(name, controller string, opts ...ResourceOptions) []*Route {
	return r.root.Resource(name, controller, opts...)
}

func (r *Router) addRoute(route *Route) {
	r.routes.Add(route)
	r.finalized.Store(false)
}

// --- Middleware configuration ---

// RegisterMiddleware registers a middleware instance under id. Aliases and
// groups resolve to ids.
func (r *Router) RegisterMiddleware(id string, mw Middleware) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware[id] = mw
	r.finalized.Store(false)
	return r
}

// AliasMiddleware registers a short name for a middleware id.
func (r *Router) AliasMiddleware(name, id string) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[name] = id
	r.finalized.Store(false)
	return r
}

// MiddlewareGroup registers a named list of middleware. Entries may be ids,
// aliases or other group names.
func (r *Router) MiddlewareGroup(name string, middleware []string) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[name] = cloneStrings(middleware)
	r.finalized.Store(false)
	return r
}

// PrependMiddlewareToGroup adds middleware to the front of a group unless it
// is already a member.
func (r *Router) PrependMiddlewareToGroup(group, id string) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !matchInArray(r.groups[group], id) {
		r.groups[group] = append([]string{id}, r.groups[group]...)
		r.finalized.Store(false)
	}
	return r
}

// PushMiddlewareToGroup adds middleware to the end of a group unless it is
// already a member.
func (r *Router) PushMiddlewareToGroup(group, id string) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !matchInArray(r.groups[group], id) {
		r.groups[group] = append(r.groups[group], id)
		r.finalized.Store(false)
	}
	return r
}

// SetMiddlewarePriority sets the relative order that resolved middleware
// always follow.
func (r *Router) SetMiddlewarePriority(priority []string) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.priority = cloneStrings(priority)
	r.finalized.Store(false)
	return r
}

// MiddlewarePriority returns the middleware priority list.
func (r *Router) MiddlewarePriority() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneStrings(r.priority)
}

// MiddlewareAliases returns the registered aliases.
func (r *Router) MiddlewareAliases() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneMap(r.aliases)
}

// MiddlewareGroups returns the registered groups.
func (r *Router) MiddlewareGroups() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]string, len(r.groups))
	for k, v := range r.groups {
		out[k] = cloneStrings(v)
	}
	return out
}

// SkipMiddleware disables route middleware, for tests.
func (r *Router) SkipMiddleware(skip bool) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipMiddleware = skip
	return r
}

// ResolveMiddleware expands declared and excluded declarations through
// aliases and groups, removes the excluded ones and duplicates, and sorts
// the rest by priority.
func (r *Router) ResolveMiddleware(declared, excluded []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ex []string
	for _, name := range excluded {
		ex = append(ex, ResolveMiddlewareName(name, r.aliases, r.groups)...)
	}

	var list []string
	for _, name := range declared {
		list = append(list, ResolveMiddlewareName(name, r.aliases, r.groups)...)
	}

	list = uniqueStrings(excludeMiddleware(list, ex))
	return SortMiddleware(r.priority, list)
}

// MiddlewareStack returns the registered middleware for resolved ids, with
// declaration arguments bound.
func (r *Router) MiddlewareStack(ids []string) ([]Middleware, error) {
	return r.middlewareStack(nil, ids)
}

func (r *Router) middlewareStack(route *Route, ids []string) ([]Middleware, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stack := make([]Middleware, 0, len(ids))
	var errs []error
	for _, id := range ids {
		name, args := ParseMiddleware(id)
		mw, ok := r.middleware[name]
		if route != nil {
			if inline, found := route.inline[name]; found {
				mw, ok = inline, true
			}
		}
		if !ok || mw == nil {
			errs = append(errs, fmt.Errorf("mux: middleware %q: %w", name, ErrUnresolvable))
			continue
		}
		stack = append(stack, bindArgs(mw, args))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return stack, nil
}

// GatherRouteMiddleware returns the resolved middleware ids for a route.
func (r *Router) GatherRouteMiddleware(route *Route) []string {
	if resolved := route.ResolvedMiddleware(); resolved != nil {
		return resolved
	}
	computed, _ := r.computeMiddleware(route)
	return r.ResolveMiddleware(computed, route.excluded)
}

// --- Finalize ---

// Finalize prepares the router for dispatch. It checks every route action,
// computes the middleware of every route once, rebuilds the name and action
// lookups and compiles the matcher. It is called by the first Dispatch if
// it was not called before.
//
// A route that cannot be prepared is left out of matching and its error is
// part of the returned one. The other routes keep dispatching. The result is
// kept until the routes or the middleware configuration change.
func (r *Router) Finalize() error {
	r.finalizeMu.Lock()
	defer r.finalizeMu.Unlock()

	if r.finalized.Load() {
		return r.finalizeErr
	}

	var errs []error
	for _, route := range r.routes.Routes() {
		if err := r.finalizeRoute(route); err != nil {
			route.memo.Store(&routeMemo{err: err})
			errs = append(errs, fmt.Errorf("mux: route %v %s: %w", route.methods, route.uri, err))
		}
	}

	r.routes.RefreshNameLookups()
	r.routes.RefreshActionLookups()

	r.routes.invalidate()
	if err := r.routes.Compile(); err != nil {
		errs = append(errs, err)
	}

	r.finalizeErr = errors.Join(errs...)
	r.finalized.Store(true)

	if r.finalizeErr != nil {
		r.logger.WithError(r.finalizeErr).Error("router finalize failed")
		return r.finalizeErr
	}

	r.logger.WithField("routes", r.routes.Len()).Debug("router finalized")
	return nil
}

func (r *Router) finalizeRoute(route *Route) error {
	if err := route.GetError(); err != nil {
		return err
	}

	if !isStaticURI(route.uri) {
		if _, err := newRouteRegexp(route.uri, route.wheres); err != nil {
			return err
		}
	}

	computed, err := r.computeMiddleware(route)
	if err != nil {
		return err
	}

	resolved := r.ResolveMiddleware(computed, route.excluded)
	stack, err := r.middlewareStack(route, resolved)
	if err != nil {
		return err
	}

	route.memo.Store(&routeMemo{
		computed: computed,
		resolved: resolved,
		stack:    stack,
	})
	return nil
}

// computeMiddleware checks the route action and returns the route-declared
// middleware followed by the controller-declared middleware.
func (r *Router) computeMiddleware(route *Route) ([]string, error) {
	declared := cloneStrings(route.middleware)

	switch a := route.action.(type) {
	case HandlerAction:
		if err := validateHandler(a.Func); err != nil {
			return nil, err
		}
	case ControllerAction:
		ctrl, err := r.controllers.Make(a.Controller, r.container)
		if err != nil {
			return nil, err
		}
		if !r.resolver.HasMethod(ctrl, a.Method) {
			return nil, fmt.Errorf("mux: controller %s has no usable method %s: %w", a.Controller, a.Method, ErrUnresolvable)
		}
		declared = append(declared, r.resolver.GetMiddleware(ctrl, a.Method)...)
	}

	return uniqueStrings(declared), nil
}

// --- Dispatch ---

// Dispatch matches the request, runs the route middleware and action, and
// returns the response.
//
// Unknown paths fail with *NotFoundError and known paths with an unaccepted
// method with *MethodNotAllowedError, except OPTIONS requests which get a
// 200 reply carrying an Allow header. Errors from middleware and actions
// propagate unchanged, except *ResponseError which becomes the response.
func (r *Router) Dispatch(req *http.Request) (*Response, error) {
	if !r.finalized.Load() {
		// Failed routes are logged by Finalize and never match.
		_ = r.Finalize()
	}

	m, err := r.routes.Match(req)
	if err != nil {
		return nil, err
	}
	if !m.Found() {
		return m.Response, nil
	}

	return r.runRoute(req, m.Route)
}

// runRoute exposes the bound route on the request and sends it through the
// route middleware to the action.
func (r *Router) runRoute(req *http.Request, route *Route) (*Response, error) {
	req = setRouteContext(req, route, route.parameters)

	r.mu.RLock()
	skip := r.skipMiddleware
	r.mu.RUnlock()

	var stack []Middleware
	if !skip {
		stack = route.middlewareStack()
	}

	return NewPipeline().
		Send(req).
		Through(stack...).
		Then(func(req *http.Request) (*Response, error) {
			return r.runAction(req, route)
		})
}

// runAction calls the route action and normalizes its result. A
// *ResponseError returned by the action is the response.
func (r *Router) runAction(req *http.Request, route *Route) (*Response, error) {
	var (
		result any
		err    error
	)

	switch a := route.action.(type) {
	case HandlerAction:
		result, err = r.resolver.Call(req, route, a.Func)
	case ControllerAction:
		var ctrl any
		ctrl, err = r.controllers.Make(a.Controller, r.container)
		if err == nil {
			result, err = r.resolver.Dispatch(req, route, ctrl, a.Method)
		}
	default:
		err = fmt.Errorf("mux: route %s has no action: %w", route.uri, ErrUnresolvable)
	}

	if err != nil {
		var re *ResponseError
		if errors.As(err, &re) && re.Response != nil {
			return re.Response, nil
		}
		return nil, err
	}

	return PrepareResponse(req, result)
}

// ServeHTTP dispatches the request and writes the response. Errors carrying
// a status code are written with it; any other error is logged and answered
// with 500 Internal Server Error.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	resp, err := r.Dispatch(req)
	if err != nil {
		resp = r.errorResponse(req, err)
	}
	if err := resp.Send(w); err != nil {
		r.logger.WithError(err).Debug("write response")
	}
}

func (r *Router) errorResponse(req *http.Request, err error) *Response {
	var re *ResponseError
	if errors.As(err, &re) && re.Response != nil {
		return re.Response
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		resp := Text(sc.StatusCode(), http.StatusText(sc.StatusCode()))
		resp.Header.Set("Content-Type", "text/plain; charset=utf-8")
		for k, vv := range sc.Headers() {
			for _, v := range vv {
				resp.Header.Add(k, v)
			}
		}
		return resp
	}

	r.logger.WithError(err).WithFields(logrus.Fields{
		"method": req.Method,
		"path":   req.URL.Path,
	}).Error("dispatch failed")

	resp := Text(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	resp.Header.Set("Content-Type", "text/plain; charset=utf-8")
	return resp
}

// --- Introspection ---

// Routes returns the route collection.
func (r *Router) Routes() *RouteCollection {
	return r.routes
}

// GetRoutes returns every route in registration order.
func (r *Router) GetRoutes() []*Route {
	return r.routes.Routes()
}

// GetByName returns the route with the given name, or nil. Lookups are
// exact once the router is finalized.
func (r *Router) GetByName(name string) *Route {
	return r.routes.GetByName(name)
}

// GetByAction returns the route for a "Controller@method" action, or nil.
func (r *Router) GetByAction(action string) *Route {
	return r.routes.GetByAction(action)
}

// Current returns the route bound to the request being dispatched, or nil.
func (r *Router) Current(req *http.Request) *Route {
	return CurrentRoute(req)
}

// CurrentRouteName returns the name of the route bound to req, if any.
func (r *Router) CurrentRouteName(req *http.Request) string {
	if route := CurrentRoute(req); route != nil {
		return route.GetName()
	}
	return ""
}

// URL builds the path of a named route.
func (r *Router) URL(name string, params map[string]string) (string, error) {
	route := r.routes.GetByName(name)
	if route == nil {
		return "", fmt.Errorf("mux: route %q is not defined: %w", name, ErrNotFound)
	}
	return route.URL(params)
}

// WalkFunc is the type of the function called for each route visited by
// Walk.
type WalkFunc func(route *Route) error

// ErrSkipWalk is used as a return value from WalkFunc to stop the walk
// without an error.
var ErrSkipWalk = errors.New("skip remaining routes")

// Walk calls walkFn for every route in registration order.
func (r *Router) Walk(walkFn WalkFunc) error {
	for _, route := range r.routes.Routes() {
		if err := walkFn(route); err != nil {
			if errors.Is(err, ErrSkipWalk) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Controllers returns the controller registry.
func (r *Router) Controllers() *Controllers {
	return r.controllers
}

// Container returns the service container.
func (r *Router) Container() Container {
	return r.container
}

// Logger returns the router logger.
func (r *Router) Logger() logrus.FieldLogger {
	return r.logger
}
