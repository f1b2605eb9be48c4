package mux

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
)

// inlineSeq numbers middleware attached directly to routes with Use.
var inlineSeq atomic.Uint64

// routeMemo holds the middleware computed for a route when the router is
// finalized. It is never modified after being stored.
type routeMemo struct {
	// computed is the route-declared plus controller-declared list.
	computed []string
	// resolved is computed expanded, filtered and priority-sorted.
	resolved []string
	// stack holds the middleware instances for resolved, in order.
	stack []Middleware
	// err is set when the route could not be prepared. Such a route is
	// left out of matching.
	err error
}

// Route is a single registered endpoint: a method set, a URI pattern and the
// action to run, plus the attributes inherited from its groups.
//
// Routes are configured during registration and treated as read-only once the
// router is finalized. Matching never mutates a registered route: Bind
// returns a request-scoped copy carrying the captured parameters.
type Route struct {
	methods        []string
	uri            string
	action         Action
	name           string
	prefix         string
	middleware     []string
	inline         map[string]Middleware
	excluded       []string
	wheres         map[string]string
	bindingFields  map[string]string
	parameterNames []string
	optional       map[string]bool
	parameters     map[string]string

	collection *RouteCollection
	origin     *Route
	memo       atomic.Pointer[routeMemo]
	err        error
}

// NewRoute creates a route for the given methods, URI pattern and action.
//
// Methods are upper-cased and validated as RFC 9110 tokens; GET implies HEAD.
// The URI is stored without leading or trailing slashes, the root being "/".
// Errors are recorded on the route and reported by GetError.
func NewRoute(methods []string, uri string, action Action) *Route {
	r := &Route{
		action: action,
		wheres: make(map[string]string),
	}
	if action == nil {
		r.err = errors.New("mux: route action is nil")
	}
	r.setMethods(methods)
	r.setURI(uri)
	return r
}

func (r *Route) setMethods(methods []string) {
	if len(methods) == 0 {
		r.addError(errors.New("mux: route has no methods"))
		return
	}

	list := make([]string, 0, len(methods)+1)
	for _, m := range methods {
		m = strings.ToUpper(strings.TrimSpace(m))
		if !validMethod(m) {
			r.addError(fmt.Errorf("mux: invalid method %q", m))
			continue
		}
		list = append(list, m)
	}
	if matchInArray(list, "GET") && !matchInArray(list, "HEAD") {
		list = append(list, "HEAD")
	}
	r.methods = uniqueStrings(list)
}

// setURI normalizes uri, records binding fields and optional placeholders,
// and memoizes the parameter names.
func (r *Route) setURI(uri string) {
	uri = normalizePath(collapseSlashes(uri))

	idxs, err := braceIndices(uri)
	if err != nil {
		r.addError(err)
		r.uri = uri
		return
	}

	var (
		b        strings.Builder
		names    []string
		optional = make(map[string]bool)
		fields   = make(map[string]string)
		end      int
	)
	for i := 0; i < len(idxs); i += 2 {
		b.WriteString(uri[end:idxs[i]])
		end = idxs[i+1]

		name, opt := placeholder(uri[idxs[i]+1 : end-1])
		name, field, hasField := strings.Cut(name, ":")
		if name == "" || strings.Contains(name, "/") {
			r.addError(fmt.Errorf("mux: missing name in %q from %q", uri[idxs[i]:end], uri))
			continue
		}
		if hasField && field != "" {
			fields[name] = field
		}
		if opt {
			optional[name] = true
		}
		names = append(names, name)

		b.WriteByte('{')
		b.WriteString(name)
		if opt {
			b.WriteByte('?')
		}
		b.WriteByte('}')
	}
	b.WriteString(uri[end:])

	if err := checkDuplicateVars(names); err != nil {
		r.addError(err)
	}

	r.uri = b.String()
	r.parameterNames = names
	r.optional = optional
	r.bindingFields = fields
}

// placeholder splits the inside of a {...} pair into its name and whether it
// is optional.
func placeholder(inner string) (string, bool) {
	if strings.HasSuffix(inner, "?") {
		return strings.TrimSuffix(inner, "?"), true
	}
	return inner, false
}

func (r *Route) addError(err error) {
	r.err = errors.Join(r.err, err)
}

// changed tells the collection the route needs preparing again.
func (r *Route) changed() {
	if r.collection != nil {
		r.collection.changed()
	}
}

// failed reports whether the router could not prepare the route.
func (r *Route) failed() bool {
	m := r.memo.Load()
	return m != nil && m.err != nil
}

// GetError returns an error resulting from building the route, if any.
func (r *Route) GetError() error {
	return r.err
}

// --- Attributes ---

// Name appends name to the route name. Group name prefixes are applied this
// way, so a route in a group named "users." called with Name("show") ends up
// as "users.show".
func (r *Route) Name(name string) *Route {
	old := r.name
	r.name += name
	if r.collection != nil {
		r.collection.rename(r, old)
	}
	return r
}

// GetName returns the name for the route, if any.
func (r *Route) GetName() string {
	return r.name
}

// Named reports whether the route name matches any of the given names.
// A trailing "*" in a pattern matches any suffix.
func (r *Route) Named(patterns ...string) bool {
	if r.name == "" {
		return false
	}
	for _, p := range patterns {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(r.name, prefix) {
				return true
			}
			continue
		}
		if p == r.name {
			return true
		}
	}
	return false
}

// Prefix prepends prefix to the route URI.
func (r *Route) Prefix(prefix string) *Route {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return r
	}

	old := r.uri
	r.setURI(joinPath(prefix, r.uri))
	r.prefix = strings.Trim(prefix+"/"+r.prefix, "/")
	if r.collection != nil {
		r.collection.move(r, old)
	}
	return r
}

// GetPrefix returns the accumulated group prefix of the route.
func (r *Route) GetPrefix() string {
	return r.prefix
}

// GetURI returns the normalized URI pattern.
func (r *Route) GetURI() string {
	return r.uri
}

// GetMethods returns the methods the route accepts.
func (r *Route) GetMethods() []string {
	return cloneStrings(r.methods)
}

// GetAction returns the route action.
func (r *Route) GetAction() Action {
	return r.action
}

// Middleware appends middleware declarations to the route. A declaration is
// an alias, a group name or a registered middleware id, optionally followed
// by ":arg1,arg2".
func (r *Route) Middleware(names ...string) *Route {
	r.middleware = append(r.middleware, names...)
	r.changed()
	return r
}

// Use attaches middleware instances directly to the route. Each one gets a
// stable identity so it can take part in ordering and de-duplication.
func (r *Route) Use(mws ...Middleware) *Route {
	if r.inline == nil {
		r.inline = make(map[string]Middleware, len(mws))
	}
	for _, mw := range mws {
		if mw == nil {
			continue
		}
		id := "inline#" + strconv.FormatUint(inlineSeq.Add(1), 10)
		r.inline[id] = mw
		r.middleware = append(r.middleware, id)
	}
	r.changed()
	return r
}

// WithoutMiddleware excludes middleware from the route, including middleware
// inherited from groups.
func (r *Route) WithoutMiddleware(names ...string) *Route {
	r.excluded = append(r.excluded, names...)
	r.changed()
	return r
}

// GetMiddleware returns the middleware declared on the route and its groups.
func (r *Route) GetMiddleware() []string {
	return cloneStrings(r.middleware)
}

// GetExcludedMiddleware returns the middleware excluded from the route.
func (r *Route) GetExcludedMiddleware() []string {
	return cloneStrings(r.excluded)
}

// GatherMiddleware returns the route-declared and controller-declared
// middleware computed when the router was finalized.
func (r *Route) GatherMiddleware() []string {
	if m := r.definition().memo.Load(); m != nil {
		return cloneStrings(m.computed)
	}
	return nil
}

// ResolvedMiddleware returns the concrete, ordered middleware ids that run
// for the route.
func (r *Route) ResolvedMiddleware() []string {
	if m := r.definition().memo.Load(); m != nil {
		return cloneStrings(m.resolved)
	}
	return nil
}

func (r *Route) middlewareStack() []Middleware {
	if m := r.definition().memo.Load(); m != nil {
		return m.stack
	}
	return nil
}

// Where constrains a parameter with a regular expression. Constraints replace
// the default "[^/]+" capture pattern.
func (r *Route) Where(name, expr string) *Route {
	r.wheres[name] = expr
	if r.collection != nil {
		r.collection.invalidate()
	}
	r.changed()
	return r
}

// SetWheres applies several constraints at once.
func (r *Route) SetWheres(wheres map[string]string) *Route {
	for name, expr := range wheres {
		r.Where(name, expr)
	}
	return r
}

// GetWheres returns the parameter constraints.
func (r *Route) GetWheres() map[string]string {
	return cloneMap(r.wheres)
}

// BindingFields returns the per-parameter field overrides declared with the
// "{name:field}" syntax.
func (r *Route) BindingFields() map[string]string {
	return cloneMap(r.bindingFields)
}

// BindingFieldFor returns the binding field declared for a parameter.
func (r *Route) BindingFieldFor(name string) (string, bool) {
	f, ok := r.bindingFields[name]
	return f, ok
}

// ParameterNames returns the placeholder names in declaration order.
func (r *Route) ParameterNames() []string {
	return cloneStrings(r.parameterNames)
}

// IsOptional reports whether the named placeholder is optional.
func (r *Route) IsOptional(name string) bool {
	return r.optional[name]
}

// --- Binding ---

// Bind returns a copy of the route carrying the given parameter values.
// Only placeholders the route declares are kept, and empty values are
// treated as absent optional parameters. The registered route is left
// untouched.
func (r *Route) Bind(params map[string]string) *Route {
	bound := &Route{
		methods:        r.methods,
		uri:            r.uri,
		action:         r.action,
		name:           r.name,
		prefix:         r.prefix,
		middleware:     r.middleware,
		inline:         r.inline,
		excluded:       r.excluded,
		wheres:         r.wheres,
		bindingFields:  r.bindingFields,
		parameterNames: r.parameterNames,
		optional:       r.optional,
		origin:         r.definition(),
		err:            r.err,
		parameters:     make(map[string]string, len(r.parameterNames)),
	}
	for _, name := range r.parameterNames {
		if v, ok := params[name]; ok && v != "" {
			bound.parameters[name] = v
		}
	}
	return bound
}

func (r *Route) definition() *Route {
	if r.origin != nil {
		return r.origin
	}
	return r
}

// IsBound reports whether the route was bound to a request.
func (r *Route) IsBound() bool {
	return r.parameters != nil
}

// Parameters returns the bound parameters. It fails with ErrRouteNotBound
// on a route that was not matched against a request.
func (r *Route) Parameters() (map[string]string, error) {
	if r.parameters == nil {
		return nil, ErrRouteNotBound
	}
	return cloneMap(r.parameters), nil
}

// ParametersWithoutNulls returns the bound parameters that carry a value.
func (r *Route) ParametersWithoutNulls() (map[string]string, error) {
	params, err := r.Parameters()
	if err != nil {
		return nil, err
	}
	for k, v := range params {
		if v == "" {
			delete(params, k)
		}
	}
	return params, nil
}

// Parameter returns a bound parameter value, or "" when it is absent or the
// route is not bound.
func (r *Route) Parameter(name string) string {
	return r.parameters[name]
}

// HasParameter reports whether a parameter is bound.
func (r *Route) HasParameter(name string) bool {
	_, ok := r.parameters[name]
	return ok
}

// SetParameter sets a parameter on a bound route.
func (r *Route) SetParameter(name, value string) error {
	if r.parameters == nil {
		return ErrRouteNotBound
	}
	r.parameters[name] = value
	return nil
}

// ForgetParameter removes a parameter from a bound route.
func (r *Route) ForgetParameter(name string) error {
	if r.parameters == nil {
		return ErrRouteNotBound
	}
	delete(r.parameters, name)
	return nil
}

// --- URL building ---

// URL builds the path for the route per RFC 3986 Section 5.3 (component
// recomposition). Values for undeclared parameters are appended as a query
// string. Missing optional parameters are dropped together with their
// leading slash.
func (r *Route) URL(params map[string]string) (string, error) {
	if r.err != nil {
		return "", r.err
	}

	idxs, err := braceIndices(r.uri)
	if err != nil {
		return "", err
	}

	var (
		b    strings.Builder
		used = make(map[string]bool, len(r.parameterNames))
		end  int
	)
	for i := 0; i < len(idxs); i += 2 {
		raw := r.uri[end:idxs[i]]
		end = idxs[i+1]
		name, opt := placeholder(r.uri[idxs[i]+1 : end-1])
		used[name] = true

		v := params[name]
		if v == "" {
			if !opt {
				return "", fmt.Errorf("mux: missing route variable %q", name)
			}
			b.WriteString(strings.TrimSuffix(raw, "/"))
			continue
		}
		if expr, ok := r.wheres[name]; ok {
			re, err := compileRegexp("^(?:" + expr + ")$")
			if err != nil {
				return "", fmt.Errorf("mux: invalid pattern %q in variable %q: %w", expr, name, err)
			}
			if !re.MatchString(v) {
				return "", fmt.Errorf("mux: variable %q doesn't match, expected %q", name, expr)
			}
		}
		b.WriteString(raw)
		b.WriteString(url.PathEscape(v))
	}
	b.WriteString(r.uri[end:])

	path := "/" + strings.TrimPrefix(b.String(), "/")

	extra := url.Values{}
	keys := make([]string, 0, len(params))
	for k := range params {
		if !used[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		extra.Set(k, params[k])
	}
	if len(extra) > 0 {
		path += "?" + extra.Encode()
	}

	return path, nil
}
