package mux

import (
	"net/http"
	"strings"
)

// Handler is the continuation a middleware calls to pass the request on.
// The terminal handler runs the route action.
type Handler func(r *http.Request) (*Response, error)

// Middleware processes a request around the rest of the pipeline. It either
// continues by calling next, possibly with a modified request, or responds
// on its own by returning a response without calling next.
type Middleware interface {
	Handle(r *http.Request, next Handler) (*Response, error)
}

// ParameterizedMiddleware is a middleware that accepts the arguments of a
// "name:arg1,arg2" declaration.
type ParameterizedMiddleware interface {
	Middleware
	HandleWith(r *http.Request, next Handler, args []string) (*Response, error)
}

// MiddlewareFunc is a function which receives a request and the next handler
// in the chain. It implements Middleware.
type MiddlewareFunc func(r *http.Request, next Handler) (*Response, error)

// Handle implements Middleware.
func (mw MiddlewareFunc) Handle(r *http.Request, next Handler) (*Response, error) {
	return mw(r, next)
}

// ParameterizedFunc is a function middleware that receives declaration
// arguments. It implements ParameterizedMiddleware.
type ParameterizedFunc func(r *http.Request, next Handler, args []string) (*Response, error)

// Handle implements Middleware.
func (mw ParameterizedFunc) Handle(r *http.Request, next Handler) (*Response, error) {
	return mw(r, next, nil)
}

// HandleWith implements ParameterizedMiddleware.
func (mw ParameterizedFunc) HandleWith(r *http.Request, next Handler, args []string) (*Response, error) {
	return mw(r, next, args)
}

// withArgs binds declaration arguments to a parameterized middleware.
type withArgs struct {
	mw   ParameterizedMiddleware
	args []string
}

func (w withArgs) Handle(r *http.Request, next Handler) (*Response, error) {
	return w.mw.HandleWith(r, next, w.args)
}

// bindArgs returns mw with args applied. Middleware that do not accept
// arguments ignore them.
func bindArgs(mw Middleware, args []string) Middleware {
	if pm, ok := mw.(ParameterizedMiddleware); ok && len(args) > 0 {
		return withArgs{mw: pm, args: args}
	}
	return mw
}

// ParseMiddleware splits a "name:arg1,arg2" declaration into its name and
// arguments.
func ParseMiddleware(declaration string) (string, []string) {
	name, params, found := strings.Cut(declaration, ":")
	if !found || params == "" {
		return name, nil
	}
	return name, strings.Split(params, ",")
}

// ResolveMiddlewareName expands a middleware declaration into concrete
// middleware ids.
//
// A group name expands to its members, recursively; nested group references
// that would loop are skipped. Any other name is looked up in aliases and
// keeps its ":args" suffix.
func ResolveMiddlewareName(name string, aliases map[string]string, groups map[string][]string) []string {
	if _, ok := groups[name]; ok {
		return expandMiddlewareGroup(name, aliases, groups, map[string]bool{})
	}
	return []string{resolveAlias(name, aliases)}
}

func expandMiddlewareGroup(name string, aliases map[string]string, groups map[string][]string, visiting map[string]bool) []string {
	visiting[name] = true
	defer delete(visiting, name)

	var out []string
	for _, entry := range groups[name] {
		if _, ok := groups[entry]; ok {
			if visiting[entry] {
				continue
			}
			out = append(out, expandMiddlewareGroup(entry, aliases, groups, visiting)...)
			continue
		}
		out = append(out, resolveAlias(entry, aliases))
	}
	return out
}

func resolveAlias(declaration string, aliases map[string]string) string {
	name, params, found := strings.Cut(declaration, ":")
	if id, ok := aliases[name]; ok {
		name = id
	}
	if found && params != "" {
		return name + ":" + params
	}
	return name
}

// SortMiddleware orders middleware so that every entry found in priority
// appears in the same relative order as in priority. Entries that are not in
// priority keep their position relative to each other. Declaration arguments
// are ignored when looking an entry up in priority.
//
// Each time an entry is found ranked before the last prioritized entry seen,
// it is moved in front of that entry and the scan restarts. Every move
// removes at least one inversion, so the loop terminates.
func SortMiddleware(priority, middleware []string) []string {
	rank := make(map[string]int, len(priority))
	for i, p := range priority {
		if _, ok := rank[p]; !ok {
			rank[p] = i
		}
	}

	list := cloneStrings(middleware)

	for moved := true; moved; {
		moved = false
		lastIndex, lastRank := 0, -1
		for i, entry := range list {
			name, _ := ParseMiddleware(entry)
			r, ok := rank[name]
			if !ok {
				continue
			}
			if lastRank >= 0 && r < lastRank {
				copy(list[lastIndex+1:i+1], list[lastIndex:i])
				list[lastIndex] = entry
				moved = true
				break
			}
			lastIndex, lastRank = i, r
		}
	}

	return uniqueStrings(list)
}

// excludeMiddleware removes every entry of middleware matched by excluded.
// An excluded entry without arguments also matches the same middleware
// declared with arguments.
func excludeMiddleware(middleware, excluded []string) []string {
	if len(excluded) == 0 {
		return middleware
	}

	exact := make(map[string]bool, len(excluded))
	byName := make(map[string]bool, len(excluded))
	for _, e := range excluded {
		exact[e] = true
		if name, args := ParseMiddleware(e); len(args) == 0 {
			byName[name] = true
		}
	}

	out := make([]string, 0, len(middleware))
	for _, m := range middleware {
		if exact[m] {
			continue
		}
		if name, _ := ParseMiddleware(m); byName[name] {
			continue
		}
		out = append(out, m)
	}
	return out
}
