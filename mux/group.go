package mux

import (
	"fmt"
	"net/http"
	"strings"

	"dario.cat/mergo"
	"github.com/gobuffalo/flect"
	"github.com/sirupsen/logrus"
)

// GroupAttributes are the attributes a group passes on to the routes and
// groups registered inside it.
type GroupAttributes struct {
	// Prefix is prepended to route URIs.
	Prefix string `yaml:"prefix"`
	// As is prepended to route names.
	As string `yaml:"as"`
	// Middleware is declared on every route, before route middleware.
	Middleware []string `yaml:"middleware"`
	// ExcludedMiddleware is excluded from every route.
	ExcludedMiddleware []string `yaml:"excluded_middleware"`
	// Namespace qualifies controller names in string actions.
	Namespace string `yaml:"namespace"`
	// Controller turns bare method names into "Controller@method" actions.
	Controller string `yaml:"controller"`
	// Where constrains route parameters.
	Where map[string]string `yaml:"where"`
}

// MergeGroup merges child attributes into parent ones.
//
// Prefixes join path-segment-wise and name prefixes concatenate. Middleware
// lists concatenate parent first. Where maps merge with the child winning on
// collisions. A child namespace is appended to the parent one unless it
// starts with "." which makes it absolute. A child controller replaces the
// parent one.
func MergeGroup(child, parent GroupAttributes) GroupAttributes {
	merged := GroupAttributes{
		Prefix:             strings.Trim(strings.Trim(parent.Prefix, "/")+"/"+strings.Trim(child.Prefix, "/"), "/"),
		As:                 parent.As + child.As,
		Middleware:         append(cloneStrings(parent.Middleware), child.Middleware...),
		ExcludedMiddleware: append(cloneStrings(parent.ExcludedMiddleware), child.ExcludedMiddleware...),
		Namespace:          mergeNamespace(child.Namespace, parent.Namespace),
		Controller:         parent.Controller,
		Where:              cloneMap(parent.Where),
	}
	if child.Controller != "" {
		merged.Controller = child.Controller
	}
	for k, v := range child.Where {
		merged.Where[k] = v
	}
	return merged
}

func mergeNamespace(child, parent string) string {
	switch {
	case strings.HasPrefix(child, "."):
		return strings.TrimPrefix(child, ".")
	case child == "":
		return parent
	case parent == "":
		return child
	}
	return strings.TrimSuffix(parent, ".") + "." + child
}

// Group is a registration scope. Routes registered on it inherit its
// attributes; nested groups receive the merged attributes and never modify
// the enclosing group.
type Group struct {
	router *Router
	attrs  GroupAttributes
}

// Attributes returns a copy of the group attributes.
func (g *Group) Attributes() GroupAttributes {
	return MergeGroup(GroupAttributes{}, g.attrs)
}

// Group creates a nested group and passes it to each fn.
func (g *Group) Group(attrs GroupAttributes, fns ...func(*Group)) *Group {
	child := &Group{router: g.router, attrs: MergeGroup(attrs, g.attrs)}
	for _, fn := range fns {
		fn(child)
	}
	return child
}

// Prefix returns a nested group with the given URI prefix.
func (g *Group) Prefix(prefix string) *Group {
	return g.Group(GroupAttributes{Prefix: prefix})
}

// Name returns a nested group with the given route name prefix.
func (g *Group) Name(as string) *Group {
	return g.Group(GroupAttributes{As: as})
}

// Middleware returns a nested group declaring the given middleware.
func (g *Group) Middleware(names ...string) *Group {
	return g.Group(GroupAttributes{Middleware: names})
}

// Controller returns a nested group whose bare actions target controller.
func (g *Group) Controller(controller string) *Group {
	return g.Group(GroupAttributes{Controller: controller})
}

// Get registers a GET route. HEAD is added automatically.
func (g *Group) Get(uri string, action any) *Route {
	return g.addRoute([]string{http.MethodGet}, uri, action)
}

// Post registers a POST route.
func (g *Group) Post(uri string, action any) *Route {
	return g.addRoute([]string{http.MethodPost}, uri, action)
}

// Put registers a PUT route.
func (g *Group) Put(uri string, action any) *Route {
	return g.addRoute([]string{http.MethodPut}, uri, action)
}

// Patch registers a PATCH route.
func (g *Group) Patch(uri string, action any) *Route {
	return g.addRoute([]string{http.MethodPatch}, uri, action)
}

// Delete registers a DELETE route.
func (g *Group) Delete(uri string, action any) *Route {
	return g.addRoute([]string{http.MethodDelete}, uri, action)
}

// Options registers an OPTIONS route.
func (g *Group) Options(uri string, action any) *Route {
	return g.addRoute([]string{http.MethodOptions}, uri, action)
}

// Any registers a route for every verb in Verbs.
func (g *Group) Any(uri string, action any) *Route {
	return g.addRoute(Verbs, uri, action)
}

// Match registers a route for the given methods.
func (g *Group) Match(methods []string, uri string, action any) *Route {
	return g.addRoute(methods, uri, action)
}

// ResourceOptions tune the routes registered by Resource.
type ResourceOptions struct {
	// Only limits the registered actions. Defaults to all of them.
	Only []string
	// Except removes actions.
	Except []string
	// Parameter is the placeholder name. Defaults to the singular of the
	// resource name.
	Parameter string
	// Middleware is declared on every resource route.
	Middleware []string
	// Where constrains the placeholder.
	Where string
}

// resourceActions lists the resource actions in registration order.
var resourceActions = []string{"index", "store", "show", "update", "destroy"}

// Resource registers the CRUD routes of an API resource handled by
// controller:
//
//	GET       name            name.index    Controller@index
//	POST      name            name.store    Controller@store
//	GET       name/{single}   name.show     Controller@show
//	PUT/PATCH name/{single}   name.update   Controller@update
//	DELETE    name/{single}   name.destroy  Controller@destroy
func (g *Group) Resource(name, controller string, opts ...ResourceOptions) []*Route {
	name = strings.Trim(name, "/")
	segment := name
	if i := strings.LastIndex(name, "/"); i >= 0 {
		segment = name[i+1:]
	}

	var o ResourceOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	defaults := ResourceOptions{
		Only:      resourceActions,
		Parameter: flect.Underscore(flect.Singularize(segment)),
	}
	if err := mergo.Merge(&o, defaults); err != nil {
		r := NewRoute([]string{http.MethodGet}, name, nil)
		r.addError(fmt.Errorf("mux: resource %s: %w", name, err))
		return []*Route{g.router.routes.Add(r)}
	}

	param := "{" + o.Parameter + "}"
	routeName := strings.ReplaceAll(name, "/", ".")

	var routes []*Route
	g.Group(GroupAttributes{
		Prefix:     name,
		As:         routeName + ".",
		Controller: controller,
		Middleware: o.Middleware,
	}, func(rg *Group) {
		for _, action := range resourceActions {
			if !matchInArray(o.Only, action) || matchInArray(o.Except, action) {
				continue
			}

			var route *Route
			switch action {
			case "index":
				route = rg.Get("/", action)
			case "store":
				route = rg.Post("/", action)
			case "show":
				route = rg.Get(param, action)
			case "update":
				route = rg.Match([]string{http.MethodPut, http.MethodPatch}, param, action)
			case "destroy":
				route = rg.Delete(param, action)
			}
			route.Name(action)
			if o.Where != "" && strings.Contains(route.uri, param) {
				route.Where(o.Parameter, expandMacro(o.Where))
			}
			routes = append(routes, route)
		}
	})
	return routes
}

// addRoute creates a route with the group attributes folded in and adds it
// to the router collection.
func (g *Group) addRoute(methods []string, uri string, action any) *Route {
	act, err := g.parseAction(action)

	route := NewRoute(methods, joinPath(g.attrs.Prefix, uri), act)
	if err != nil {
		route.addError(err)
	}
	route.prefix = strings.Trim(g.attrs.Prefix, "/")
	route.name = g.attrs.As
	route.middleware = cloneStrings(g.attrs.Middleware)
	route.excluded = cloneStrings(g.attrs.ExcludedMiddleware)
	route.SetWheres(g.attrs.Where)

	g.router.addRoute(route)

	g.router.logger.WithFields(logrus.Fields{
		"methods": route.methods,
		"uri":     route.uri,
		"action":  actionString(route.action),
	}).Debug("route registered")

	return route
}

// parseAction applies the group controller and namespace to string actions.
func (g *Group) parseAction(action any) (Action, error) {
	s, ok := action.(string)
	if !ok {
		return ParseAction(action)
	}

	s = strings.TrimSpace(s)
	if g.attrs.Controller != "" && !strings.Contains(s, "@") && !g.router.controllers.Has(s) {
		s = g.attrs.Controller + "@" + s
	}

	act, err := parseControllerAction(s)
	if err != nil {
		return nil, err
	}
	act.Controller = qualifyController(act.Controller, g.attrs.Namespace)
	return act, nil
}

// qualifyController prefixes a controller name with namespace unless it is
// absolute (leading ".") or already qualified.
func qualifyController(controller, namespace string) string {
	if strings.HasPrefix(controller, ".") {
		return strings.TrimPrefix(controller, ".")
	}
	if namespace == "" || strings.HasPrefix(controller, namespace+".") {
		return controller
	}
	return namespace + "." + controller
}

func actionString(a Action) string {
	if a == nil {
		return ""
	}
	return a.String()
}
