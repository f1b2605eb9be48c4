package mux

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// defaultPattern is the capture pattern for placeholders without a where
// constraint: one path segment.
const defaultPattern = "[^/]+"

// routeRegexp is the compiled matcher for a dynamic route URI.
type routeRegexp struct {
	// template is the route URI the regexp was built from.
	template string
	// regexp is the compiled, anchored expression.
	regexp *regexp.Regexp
	// varsN are the placeholder names in order.
	varsN []string
	// varsI are the submatch indexes of each placeholder.
	varsI []int
}

// isStaticURI reports whether uri has no placeholders.
func isStaticURI(uri string) bool {
	return !strings.Contains(uri, "{")
}

// newRouteRegexp compiles a normalized route URI into an anchored regexp.
//
// Placeholders are compiled into named groups so that capturing groups
// inside where constraints cannot shift the placeholder indexes. An optional
// placeholder swallows the slash before it, so "users/{id?}" matches both
// "users" and "users/42".
func newRouteRegexp(uri string, wheres map[string]string) (*routeRegexp, error) {
	idxs, err := braceIndices(uri)
	if err != nil {
		return nil, err
	}

	var (
		pattern bytes.Buffer
		varsN   []string
		groups  []string
		end     int
	)

	pattern.WriteByte('^')

	for i := 0; i < len(idxs); i += 2 {
		raw := uri[end:idxs[i]]
		end = idxs[i+1]

		name, opt := placeholder(uri[idxs[i]+1 : end-1])
		if name == "" {
			return nil, fmt.Errorf("mux: missing name in %q from %q", uri[idxs[i]:end], uri)
		}

		patt := defaultPattern
		if expr, ok := wheres[name]; ok && expr != "" {
			if _, err := compileRegexp(expr); err != nil {
				return nil, fmt.Errorf("mux: invalid pattern %q in variable %q: %w", expr, name, err)
			}
			patt = expr
		}

		group := "p" + strconv.Itoa(len(varsN))
		capture := fmt.Sprintf("(?P<%s>(?:%s))", group, patt)

		switch {
		case opt && strings.HasSuffix(raw, "/"):
			pattern.WriteString(regexp.QuoteMeta(strings.TrimSuffix(raw, "/")))
			fmt.Fprintf(&pattern, "(?:/%s)?", capture)
		case opt:
			pattern.WriteString(regexp.QuoteMeta(raw))
			fmt.Fprintf(&pattern, "%s?", capture)
		default:
			pattern.WriteString(regexp.QuoteMeta(raw))
			pattern.WriteString(capture)
		}

		varsN = append(varsN, name)
		groups = append(groups, group)
	}

	pattern.WriteString(regexp.QuoteMeta(uri[end:]))
	pattern.WriteByte('$')

	if err := checkDuplicateVars(varsN); err != nil {
		return nil, err
	}

	reg, err := compileRegexp(pattern.String())
	if err != nil {
		return nil, err
	}

	varsI := make([]int, len(groups))
	for i, g := range groups {
		varsI[i] = reg.SubexpIndex(g)
	}

	return &routeRegexp{
		template: uri,
		regexp:   reg,
		varsN:    varsN,
		varsI:    varsI,
	}, nil
}

// match reports whether path matches and returns the captured variables.
// path is normalized: no leading or trailing slash, the root being "/".
func (r *routeRegexp) match(path string) (map[string]string, bool) {
	if path == "/" {
		path = ""
	}
	matches := r.regexp.FindStringSubmatch(path)
	if matches == nil {
		return nil, false
	}
	vars := make(map[string]string, len(r.varsN))
	for i, name := range r.varsN {
		if idx := r.varsI[i]; idx > 0 && idx < len(matches) {
			vars[name] = matches[idx]
		}
	}
	return vars, true
}

// braceIndices returns the start and end+1 indices of each top-level
// {...} pair in s. Returns an error if braces are unbalanced.
func braceIndices(s string) ([]int, error) {
	var (
		idxs  []int
		level int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			if level++; level == 1 {
				idxs = append(idxs, i)
			}
		case '}':
			if level--; level == 0 {
				idxs = append(idxs, i+1)
			} else if level < 0 {
				return nil, fmt.Errorf("mux: unbalanced braces in %q", s)
			}
		}
	}
	if level != 0 {
		return nil, fmt.Errorf("mux: unbalanced braces in %q", s)
	}
	return idxs, nil
}

// checkDuplicateVars returns an error if any variable name is repeated.
func checkDuplicateVars(vars []string) error {
	seen := make(map[string]bool, len(vars))
	for _, v := range vars {
		if seen[v] {
			return fmt.Errorf("mux: duplicated route variable %q", v)
		}
		seen[v] = true
	}
	return nil
}
