package mux

import (
	"regexp"
	"strings"
)

// patternMacros maps macro names to the regular expressions they stand for.
// They are used by Route.WherePattern and the Where* shortcuts.
var patternMacros = map[string]string{
	"uuid":     `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`,
	"ulid":     `[0-7][0-9a-hjkmnp-tv-zA-HJKMNP-TV-Z]{25}`,
	"number":   `[0-9]+`,
	"int":      `[0-9]+`,
	"float":    `[0-9]*\.?[0-9]+`,
	"slug":     `[a-zA-Z0-9]+(?:-[a-zA-Z0-9]+)*`,
	"alpha":    `[a-zA-Z]+`,
	"alphanum": `[a-zA-Z0-9]+`,
	"date":     `[0-9]{4}-[0-9]{2}-[0-9]{2}`,
	"hex":      `[0-9a-fA-F]+`,
	// RFC 1035/1123 labels of 1-63 chars.
	"domain": `(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)*[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?`,
}

// expandMacro returns the regex pattern for a macro name. If the name is not
// a known macro, it is returned unchanged and treated as a raw expression.
func expandMacro(pattern string) string {
	if p, ok := patternMacros[pattern]; ok {
		return p
	}
	return pattern
}

// alternation builds a pattern that matches exactly one of values.
func alternation(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = regexp.QuoteMeta(v)
	}
	return "(?:" + strings.Join(quoted, "|") + ")"
}

// WherePattern constrains a parameter with a macro name (e.g. "uuid") or a
// raw regular expression.
func (r *Route) WherePattern(name, pattern string) *Route {
	return r.Where(name, expandMacro(pattern))
}

// WhereNumber constrains the given parameters to digits.
func (r *Route) WhereNumber(names ...string) *Route {
	return r.whereMacro("number", names)
}

// WhereAlpha constrains the given parameters to ASCII letters.
func (r *Route) WhereAlpha(names ...string) *Route {
	return r.whereMacro("alpha", names)
}

// WhereAlphaNumeric constrains the given parameters to ASCII letters and digits.
func (r *Route) WhereAlphaNumeric(names ...string) *Route {
	return r.whereMacro("alphanum", names)
}

// WhereUUID constrains the given parameters to RFC 9562 UUIDs.
func (r *Route) WhereUUID(names ...string) *Route {
	return r.whereMacro("uuid", names)
}

// WhereULID constrains the given parameters to ULIDs.
func (r *Route) WhereULID(names ...string) *Route {
	return r.whereMacro("ulid", names)
}

// WhereSlug constrains the given parameters to URL slugs.
func (r *Route) WhereSlug(names ...string) *Route {
	return r.whereMacro("slug", names)
}

// WhereIn constrains a parameter to one of the given literal values.
func (r *Route) WhereIn(name string, values ...string) *Route {
	return r.Where(name, alternation(values))
}

func (r *Route) whereMacro(macro string, names []string) *Route {
	for _, name := range names {
		r.Where(name, patternMacros[macro])
	}
	return r
}
