package mux

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

// Match is the outcome of a successful RouteCollection.Match call. Exactly
// one field is set: Route holds the bound route, Response holds a reply
// synthesized without a route (an OPTIONS request to a path whose routes do
// not accept OPTIONS).
type Match struct {
	Route    *Route
	Response *Response
}

// Found reports whether the match resolved to a route.
func (m Match) Found() bool {
	return m.Route != nil
}

// methodRoute is one (method, route) pair owned by a static URI.
type methodRoute struct {
	method string
	route  *Route
}

// dynamicRoute is a route with placeholders and the methods it still owns.
type dynamicRoute struct {
	route   *Route
	methods []string
	regexp  *routeRegexp
}

// compiledRoutes is the immutable matcher built from the collection.
type compiledRoutes struct {
	static  map[string][]methodRoute
	dynamic []dynamicRoute
}

// RouteCollection owns every registered route and the matcher compiled from
// them.
//
// Registration is not safe for concurrent use; matching is, and the compiled
// matcher is swapped atomically when it is rebuilt.
type RouteCollection struct {
	mu sync.RWMutex
	// routes maps method to URI to route.
	routes map[string]map[string]*Route
	// allRoutes maps "GET|HEAD" + uri to route; order keeps the keys in
	// registration order.
	allRoutes  map[string]*Route
	order      []string
	nameList   map[string]*Route
	actionList map[string]*Route

	compiled atomic.Pointer[compiledRoutes]

	// onChange is called when a registered route is modified.
	onChange func()
}

// NewRouteCollection returns an empty collection.
func NewRouteCollection() *RouteCollection {
	return &RouteCollection{
		routes:     make(map[string]map[string]*Route),
		allRoutes:  make(map[string]*Route),
		nameList:   make(map[string]*Route),
		actionList: make(map[string]*Route),
	}
}

func allRoutesKey(route *Route) string {
	return strings.Join(route.methods, "|") + route.uri
}

// Add registers a route. A route with the same method and URI as an earlier
// one replaces it for that method.
func (c *RouteCollection) Add(route *Route) *Route {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.addToCollections(route)
	c.addLookups(route)
	route.collection = c
	c.compiled.Store(nil)

	return route
}

func (c *RouteCollection) addToCollections(route *Route) {
	for _, m := range route.methods {
		byURI, ok := c.routes[m]
		if !ok {
			byURI = make(map[string]*Route)
			c.routes[m] = byURI
		}
		byURI[route.uri] = route
	}

	key := allRoutesKey(route)
	if _, exists := c.allRoutes[key]; !exists {
		c.order = append(c.order, key)
	}
	c.allRoutes[key] = route
}

func (c *RouteCollection) addLookups(route *Route) {
	if route.name != "" {
		c.nameList[route.name] = route
	}
	if ca, ok := route.action.(ControllerAction); ok {
		c.actionList[ca.String()] = route
	}
}

// rename moves a route from its previous name to its current one.
func (c *RouteCollection) rename(route *Route, old string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old != "" && c.nameList[old] == route {
		delete(c.nameList, old)
	}
	if route.name != "" {
		c.nameList[route.name] = route
	}
	c.changed()
}

// move re-keys a route whose URI changed after it was added.
func (c *RouteCollection) move(route *Route, oldURI string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range route.methods {
		if byURI := c.routes[m]; byURI != nil && byURI[oldURI] == route {
			delete(byURI, oldURI)
		}
	}

	oldKey := strings.Join(route.methods, "|") + oldURI
	newKey := allRoutesKey(route)
	if c.allRoutes[oldKey] == route {
		delete(c.allRoutes, oldKey)
		if _, exists := c.allRoutes[newKey]; exists {
			c.order = removeString(c.order, oldKey)
		} else {
			for i, k := range c.order {
				if k == oldKey {
					c.order[i] = newKey
					break
				}
			}
			c.allRoutes[newKey] = route
		}
	}

	c.addToCollections(route)
	c.compiled.Store(nil)
	c.changed()
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func (c *RouteCollection) invalidate() {
	c.compiled.Store(nil)
}

func (c *RouteCollection) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}

// Routes returns every route in registration order.
func (c *RouteCollection) Routes() []*Route {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Route, 0, len(c.order))
	for _, k := range c.order {
		if r, ok := c.allRoutes[k]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of routes.
func (c *RouteCollection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.allRoutes)
}

// Get returns the routes registered for a method, keyed by URI. An empty
// method returns every route keyed by its methods and URI.
func (c *RouteCollection) Get(method string) map[string]*Route {
	c.mu.RLock()
	defer c.mu.RUnlock()

	src := c.routes[strings.ToUpper(method)]
	if method == "" {
		src = c.allRoutes
	}
	out := make(map[string]*Route, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// HasNamedRoute reports whether a route with the given name exists.
func (c *RouteCollection) HasNamedRoute(name string) bool {
	return c.GetByName(name) != nil
}

// GetByName returns the route with the given name, or nil.
//
// Names are indexed as routes are renamed, so while routes are still being
// registered a name shared by several routes, such as a bare group prefix,
// may briefly miss. RefreshNameLookups, called by Router.Finalize, makes
// lookups exact.
func (c *RouteCollection) GetByName(name string) *Route {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nameList[name]
}

// GetByAction returns the route whose controller action is
// "Controller@method", or nil.
func (c *RouteCollection) GetByAction(action string) *Route {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.actionList[action]
}

// RefreshNameLookups rebuilds the name index from the registered routes.
// Later registrations win when two routes share a name.
func (c *RouteCollection) RefreshNameLookups() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nameList = make(map[string]*Route, len(c.nameList))
	for _, k := range c.order {
		if r := c.allRoutes[k]; r != nil && r.name != "" {
			c.nameList[r.name] = r
		}
	}
}

// RefreshActionLookups rebuilds the controller action index.
func (c *RouteCollection) RefreshActionLookups() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.actionList = make(map[string]*Route, len(c.actionList))
	for _, k := range c.order {
		if r := c.allRoutes[k]; r != nil {
			if ca, ok := r.action.(ControllerAction); ok {
				c.actionList[ca.String()] = r
			}
		}
	}
}

// Compile builds the matcher now instead of on the first Match.
func (c *RouteCollection) Compile() error {
	_, err := c.matcher()
	return err
}

func (c *RouteCollection) matcher() (*compiledRoutes, error) {
	if cr := c.compiled.Load(); cr != nil {
		return cr, nil
	}

	cr, err := c.compile()
	if err != nil {
		return nil, err
	}
	c.compiled.Store(cr)
	return cr, nil
}

// compile walks the routes in registration order. A route only keeps the
// methods for which it was not replaced by a later registration.
func (c *RouteCollection) compile() (*compiledRoutes, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cr := &compiledRoutes{static: make(map[string][]methodRoute)}

	var errs []error
	for _, k := range c.order {
		route := c.allRoutes[k]
		if route == nil || route.err != nil || route.failed() {
			continue
		}

		var owned []string
		for _, m := range route.methods {
			if c.routes[m][route.uri] == route {
				owned = append(owned, m)
			}
		}
		if len(owned) == 0 {
			continue
		}

		if isStaticURI(route.uri) {
			for _, m := range owned {
				cr.static[route.uri] = append(cr.static[route.uri], methodRoute{method: m, route: route})
			}
			continue
		}

		re, err := newRouteRegexp(route.uri, route.wheres)
		if err != nil {
			errs = append(errs, fmt.Errorf("mux: route %s: %w", route.uri, err))
			continue
		}
		cr.dynamic = append(cr.dynamic, dynamicRoute{route: route, methods: owned, regexp: re})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cr, nil
}

// Match finds the route for the request.
//
// Static URIs are tried before patterns, and patterns are tried in
// registration order. When the path is known but the method is not, an
// OPTIONS request gets a 200 reply listing the allowed methods and any other
// method fails with *MethodNotAllowedError. An unknown path fails with
// *NotFoundError.
func (c *RouteCollection) Match(req *http.Request) (Match, error) {
	cr, err := c.matcher()
	if err != nil {
		return Match{}, err
	}

	path := normalizePath(cleanPath(req.URL.Path))
	method := req.Method

	for _, mr := range cr.static[path] {
		if mr.method == method {
			return Match{Route: mr.route.Bind(nil)}, nil
		}
	}

	for _, dr := range cr.dynamic {
		if !matchInArray(dr.methods, method) {
			continue
		}
		if vars, ok := dr.regexp.match(path); ok {
			return Match{Route: dr.route.Bind(vars)}, nil
		}
	}

	if allowed := cr.allowedMethods(path); len(allowed) > 0 {
		if method == http.MethodOptions {
			resp := Text(http.StatusOK, "")
			resp.Header.Set("Allow", strings.Join(allowed, ","))
			return Match{Response: resp}, nil
		}
		return Match{}, &MethodNotAllowedError{
			Method:  method,
			Path:    req.URL.Path,
			Allowed: allowed,
		}
	}

	return Match{}, &NotFoundError{Path: req.URL.Path}
}

// AllowedMethods returns the methods accepted for a request path, in the
// order their routes were registered.
func (c *RouteCollection) AllowedMethods(path string) ([]string, error) {
	cr, err := c.matcher()
	if err != nil {
		return nil, err
	}
	return cr.allowedMethods(normalizePath(cleanPath(path))), nil
}

func (cr *compiledRoutes) allowedMethods(path string) []string {
	var allowed []string
	for _, mr := range cr.static[path] {
		allowed = append(allowed, mr.method)
	}
	for _, dr := range cr.dynamic {
		if _, ok := dr.regexp.match(path); ok {
			allowed = append(allowed, dr.methods...)
		}
	}
	return uniqueStrings(allowed)
}
