package kernel

import (
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// MediaRange is one entry of an Accept header.
type MediaRange struct {
	Type    string
	Quality float64
}

// ParseAccept parses an Accept header (RFC 9110 Section 12.5.1) into media
// ranges sorted by descending quality. Entries with equal quality keep
// their order. Malformed entries are skipped.
func ParseAccept(accept string) []MediaRange {
	var ranges []MediaRange
	for _, part := range strings.Split(accept, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		mediaType, params, err := mime.ParseMediaType(part)
		if err != nil {
			continue
		}

		q := 1.0
		if v, ok := params["q"]; ok {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				q = parsed
			}
		}
		ranges = append(ranges, MediaRange{Type: mediaType, Quality: q})
	}

	sort.SliceStable(ranges, func(i, j int) bool {
		return ranges[i].Quality > ranges[j].Quality
	})
	return ranges
}

// AcceptsJSON reports whether the Accept header mentions application/json.
func AcceptsJSON(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Accept")), "application/json")
}

// PrefersJSON reports whether application/json has the highest quality in
// the Accept header.
func PrefersJSON(r *http.Request) bool {
	ranges := ParseAccept(r.Header.Get("Accept"))

	jsonQ := -1.0
	for _, mr := range ranges {
		if mr.Type == "application/json" {
			jsonQ = mr.Quality
			break
		}
	}
	if jsonQ < 0 {
		return false
	}

	for _, mr := range ranges {
		if mr.Type != "application/json" && mr.Quality > jsonQ {
			return false
		}
	}
	return true
}

// BestMatch returns the first of the available media types accepted by the
// request, trying accepted ranges by descending quality. A missing Accept
// header or "*/*" selects the first available type. It returns "" when
// nothing matches.
func BestMatch(r *http.Request, available ...string) string {
	if len(available) == 0 {
		return ""
	}

	accept := r.Header.Get("Accept")
	if accept == "" {
		return available[0]
	}

	for _, mr := range ParseAccept(accept) {
		if mr.Quality <= 0 {
			continue
		}
		if mr.Type == "*/*" {
			return available[0]
		}
		if prefix, ok := strings.CutSuffix(mr.Type, "/*"); ok {
			for _, t := range available {
				if strings.HasPrefix(t, prefix+"/") {
					return t
				}
			}
			continue
		}
		for _, t := range available {
			if t == mr.Type {
				return t
			}
		}
	}
	return ""
}

// IsAjax reports whether the request was sent with
// X-Requested-With: XMLHttpRequest.
func IsAjax(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest")
}

// IsAPIRequest reports whether the request targets the API, by path prefix
// or by an "api." host.
func IsAPIRequest(r *http.Request) bool {
	return isAPIPath(r.URL.Path) || strings.HasPrefix(r.Host, "api.")
}

func isAPIPath(p string) bool {
	return p == "/api" || strings.HasPrefix(p, "/api/")
}

// WantsJSON reports whether a response to r should be JSON: the request is
// an Ajax request, accepts JSON, carries a JSON body or targets /api.
func WantsJSON(r *http.Request) bool {
	if IsAjax(r) || AcceptsJSON(r) {
		return true
	}
	if strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return true
	}
	return isAPIPath(r.URL.Path)
}
