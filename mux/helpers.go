package mux

import (
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/http/httpguts"
)

// cleanPath returns the canonical path for p, eliminating . and .. elements
// per RFC 3986 Section 5.2.4 (remove dot segments).
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	np := path.Clean(p)
	// path.Clean removes trailing slash except for root;
	// put the trailing slash back if necessary.
	if p[len(p)-1] == '/' && np != "/" {
		np += "/"
	}
	return np
}

// normalizePath trims leading and trailing slashes from a request path.
// The empty path is the root "/".
func normalizePath(p string) string {
	if p = strings.Trim(p, "/"); p == "" {
		return "/"
	}
	return p
}

// collapseSlashes replaces every run of slashes in s with a single slash.
func collapseSlashes(s string) string {
	if !strings.Contains(s, "//") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	prev := byte(0)
	for i := 0; i < len(s); i++ {
		if s[i] == '/' && prev == '/' {
			continue
		}
		prev = s[i]
		b.WriteByte(s[i])
	}
	return b.String()
}

// joinPath joins a group prefix and a route URI segment-wise. The result has
// no leading or trailing slash, except for the root "/".
func joinPath(prefix, uri string) string {
	return normalizePath(collapseSlashes(strings.Trim(prefix, "/") + "/" + strings.Trim(uri, "/")))
}

// validMethod reports whether m is a valid request method token per
// RFC 9110 Section 9.1.
func validMethod(m string) bool {
	return m != "" && httpguts.ValidHeaderFieldName(m)
}

// matchInArray returns true if the given string value is in the array.
func matchInArray(arr []string, value string) bool {
	for _, v := range arr {
		if v == value {
			return true
		}
	}
	return false
}

// uniqueStrings removes duplicates from s keeping the first occurrence.
func uniqueStrings(s []string) []string {
	seen := make(map[string]struct{}, len(s))
	result := make([]string, 0, len(s))
	for _, v := range s {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// upperFirst returns s with its first rune upper-cased.
func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// cloneStrings returns a copy of s that never aliases the original.
func cloneStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return append([]string(nil), s...)
}

// cloneMap returns a shallow copy of m.
func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
