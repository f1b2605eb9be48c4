package muxhandlers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/vitalvas/switchboard/mux"
	"golang.org/x/net/http/httpguts"
)

// ErrWildcardCredentials is returned when AllowedOrigins contains "*" and
// AllowCredentials is true. Use AllowOriginFunc for dynamic origin checks
// with credentials.
var ErrWildcardCredentials = errors.New("wildcard origin \"*\" cannot be used with AllowCredentials; use AllowOriginFunc instead")

// ErrInvalidHeaderName is returned when AllowedHeaders or ExposeHeaders
// contains a value that is not a valid header field name.
var ErrInvalidHeaderName = errors.New("cors: invalid header name")

// CORSConfig configures the CORS middleware behaviour.
//
// Spec references:
//   - CORS protocol: https://fetch.spec.whatwg.org/#http-cors-protocol
//   - Web Origin:    https://www.rfc-editor.org/rfc/rfc6454
//   - HTTP Vary:     https://www.rfc-editor.org/rfc/rfc9110#field.vary
type CORSConfig struct {
	// Paths limits the middleware to request paths matching one of the
	// patterns. A "*" in a pattern matches any run of characters, slashes
	// included; patterns are compared without the leading slash. Empty
	// means every path.
	Paths []string `yaml:"paths"`

	// AllowedOrigins is a list of exact origin strings, "*" for wildcard,
	// or subdomain wildcard patterns like "https://*.example.com".
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowOriginFunc is an optional dynamic callback invoked when the
	// origin does not match any entry in AllowedOrigins. Return true to allow.
	AllowOriginFunc func(origin string) bool `yaml:"-"`

	// AllowedMethods overrides the set of methods advertised in preflight
	// and actual responses. When empty the middleware discovers the methods
	// the router accepts for the request path.
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders lists the headers the client may send in the actual
	// request. When empty the middleware reflects the Access-Control-Request-Headers
	// value from the preflight request. Use "*" to reflect all requested headers.
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposeHeaders lists the headers the browser may expose to client code.
	ExposeHeaders []string `yaml:"expose_headers"`

	// AllowCredentials sets Access-Control-Allow-Credentials: true.
	// Per the Fetch Standard, "*" cannot be used as Allow-Origin when
	// credentials are enabled; the middleware returns ErrWildcardCredentials.
	AllowCredentials bool `yaml:"allow_credentials"`

	// MaxAge is the duration in seconds a preflight result may be cached.
	// Positive values are sent as-is, negative values emit "0", zero omits the header.
	MaxAge int `yaml:"max_age"`

	// OptionsStatusCode overrides the HTTP status code for preflight responses.
	// When zero (default) the middleware uses 204 No Content.
	OptionsStatusCode int `yaml:"options_status_code"`

	// OptionsPassthrough, when true, sets CORS headers on preflight but
	// forwards the request to the next handler instead of responding.
	OptionsPassthrough bool `yaml:"options_passthrough"`

	// AllowPrivateNetwork, when true, responds to Access-Control-Request-Private-Network
	// preflight headers with Access-Control-Allow-Private-Network: true.
	// See https://wicg.github.io/private-network-access/
	AllowPrivateNetwork bool `yaml:"allow_private_network"`
}

// wildcardPattern represents a subdomain wildcard pattern split at the "*".
type wildcardPattern struct {
	prefix string
	suffix string
}

// hasWildcardOrigin reports whether AllowedOrigins contains "*".
func (c *CORSConfig) hasWildcardOrigin() bool {
	return slices.Contains(c.AllowedOrigins, "*")
}

// setCORSOriginHeaders sets Access-Control-Allow-Origin, Vary, and
// Access-Control-Allow-Credentials on h.
func setCORSOriginHeaders(h http.Header, cfg *CORSConfig, origin string) {
	if cfg.hasWildcardOrigin() && !cfg.AllowCredentials {
		h.Set("Access-Control-Allow-Origin", "*")
	} else {
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
	}

	if cfg.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
}

// parseOrigins normalizes AllowedOrigins to lowercase and splits them into
// exact matches and wildcard patterns. Returns an error if a pattern contains
// multiple wildcards.
func parseOrigins(origins []string) ([]string, []wildcardPattern, error) {
	var exact []string
	var patterns []wildcardPattern

	for _, o := range origins {
		if o == "*" {
			exact = append(exact, o)
			continue
		}

		lower := strings.ToLower(o)

		if strings.Contains(lower, "*") {
			parts := strings.SplitN(lower, "*", 2)
			if strings.Contains(parts[1], "*") {
				return nil, nil, errors.New("origin pattern contains multiple wildcards: " + o)
			}

			patterns = append(patterns, wildcardPattern{
				prefix: parts[0],
				suffix: parts[1],
			})
		} else {
			exact = append(exact, lower)
		}
	}

	return exact, patterns, nil
}

// matchOrigin reports whether originLower matches any exact origin or wildcard pattern.
func matchOrigin(originLower string, exactOrigins []string, patterns []wildcardPattern) bool {
	for _, o := range exactOrigins {
		if o == "*" || o == originLower {
			return true
		}
	}

	for _, wp := range patterns {
		if len(originLower) >= len(wp.prefix)+len(wp.suffix) &&
			strings.HasPrefix(originLower, wp.prefix) &&
			strings.HasSuffix(originLower, wp.suffix) {
			return true
		}
	}

	return false
}

// compilePaths turns path patterns into anchored regular expressions.
func compilePaths(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		p = strings.Trim(p, "/")
		quoted := strings.ReplaceAll(regexp.QuoteMeta(p), `\*`, `.*`)
		out = append(out, regexp.MustCompile("^"+quoted+"$"))
	}
	return out
}

func validateHeaderNames(names []string) error {
	for _, h := range names {
		if h != "*" && !httpguts.ValidHeaderFieldName(h) {
			return fmt.Errorf("%w: %q", ErrInvalidHeaderName, h)
		}
	}
	return nil
}

// CORSMiddleware returns a middleware that implements the CORS protocol per
// the Fetch Standard (https://fetch.spec.whatwg.org/#http-cors-protocol).
// It validates the Origin header (RFC 6454), answers preflight OPTIONS
// requests, and sets the appropriate response headers.
//
// Route middleware only runs for matched routes, so the middleware is meant
// for the global kernel pipeline where it also sees preflight requests to
// paths that have no OPTIONS route. r is used to discover the methods a
// path accepts when AllowedMethods is empty; it may be nil.
//
// It returns an error if the configuration is invalid (e.g. wildcard origin
// combined with AllowCredentials).
func CORSMiddleware(r *mux.Router, cfg CORSConfig) (mux.Middleware, error) {
	if cfg.hasWildcardOrigin() && cfg.AllowCredentials {
		return nil, ErrWildcardCredentials
	}

	exactOrigins, wildcardPatterns, err := parseOrigins(cfg.AllowedOrigins)
	if err != nil {
		return nil, err
	}

	if err := validateHeaderNames(cfg.AllowedHeaders); err != nil {
		return nil, err
	}
	if err := validateHeaderNames(cfg.ExposeHeaders); err != nil {
		return nil, err
	}

	paths := compilePaths(cfg.Paths)
	pathAllowed := func(p string) bool {
		if len(paths) == 0 {
			return true
		}
		p = strings.Trim(p, "/")
		for _, re := range paths {
			if re.MatchString(p) {
				return true
			}
		}
		return false
	}

	isAllowed := func(originLower, rawOrigin string) bool {
		if matchOrigin(originLower, exactOrigins, wildcardPatterns) {
			return true
		}

		if cfg.AllowOriginFunc != nil {
			return cfg.AllowOriginFunc(rawOrigin)
		}

		return false
	}

	hasSpecificOrigins := !cfg.hasWildcardOrigin() &&
		(len(exactOrigins) > 0 || len(wildcardPatterns) > 0 || cfg.AllowOriginFunc != nil)

	headersWildcard := slices.Contains(cfg.AllowedHeaders, "*")

	preflightStatus := cfg.OptionsStatusCode
	if preflightStatus == 0 {
		preflightStatus = http.StatusNoContent
	}

	return mux.MiddlewareFunc(func(req *http.Request, next mux.Handler) (*mux.Response, error) {
		if !pathAllowed(req.URL.Path) {
			return next(req)
		}

		rawOrigin := req.Header.Get("Origin")

		if rawOrigin == "" {
			resp, err := next(req)
			// Vary on non-CORS requests with specific origins so caches
			// do not serve them to cross-origin callers.
			if resp != nil && hasSpecificOrigins {
				mergeHeaders(resp, http.Header{"Vary": {"Origin"}})
			}
			return resp, err
		}

		originLower := strings.ToLower(rawOrigin)

		if !isAllowed(originLower, rawOrigin) {
			return next(req)
		}

		if req.Method == http.MethodOptions && req.Header.Get("Access-Control-Request-Method") != "" {
			h := http.Header{}
			setCORSOriginHeaders(h, &cfg, rawOrigin)
			handlePreflight(h, req, r, &cfg, headersWildcard)

			if !cfg.OptionsPassthrough {
				return mux.NewResponse(preflightStatus, h, nil), nil
			}

			resp, err := next(req)
			if resp != nil {
				mergeHeaders(resp, h)
			}
			return resp, err
		}

		resp, err := next(req)
		if resp == nil {
			return resp, err
		}

		h := http.Header{}
		setCORSOriginHeaders(h, &cfg, rawOrigin)

		if methods := allowedMethods(r, &cfg, req); len(methods) > 0 {
			h.Set("Access-Control-Allow-Methods", strings.Join(methods, ","))
		}

		if len(cfg.ExposeHeaders) > 0 {
			h.Set("Access-Control-Expose-Headers", strings.Join(cfg.ExposeHeaders, ","))
		}

		mergeHeaders(resp, h)
		return resp, err
	}), nil
}

func handlePreflight(h http.Header, req *http.Request, r *mux.Router, cfg *CORSConfig, headersWildcard bool) {
	if methods := allowedMethods(r, cfg, req); len(methods) > 0 {
		h.Set("Access-Control-Allow-Methods", strings.Join(methods, ","))
	}

	if headersWildcard {
		if reqHeaders := req.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			h.Set("Access-Control-Allow-Headers", reqHeaders)
		}
	} else if len(cfg.AllowedHeaders) > 0 {
		h.Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowedHeaders, ","))
	} else if reqHeaders := req.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
		h.Set("Access-Control-Allow-Headers", reqHeaders)
	}

	if cfg.MaxAge > 0 {
		h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
	} else if cfg.MaxAge < 0 {
		h.Set("Access-Control-Max-Age", "0")
	}

	if cfg.AllowPrivateNetwork && req.Header.Get("Access-Control-Request-Private-Network") == "true" {
		h.Set("Access-Control-Allow-Private-Network", "true")
		h.Add("Vary", "Access-Control-Request-Private-Network")
	}

	h.Add("Vary", "Access-Control-Request-Method")
	h.Add("Vary", "Access-Control-Request-Headers")
}

// allowedMethods returns the configured methods, or the methods the router
// accepts for the request path.
func allowedMethods(r *mux.Router, cfg *CORSConfig, req *http.Request) []string {
	if len(cfg.AllowedMethods) > 0 {
		return cfg.AllowedMethods
	}
	if r == nil {
		return nil
	}
	methods, err := r.Routes().AllowedMethods(req.URL.Path)
	if err != nil {
		return nil
	}
	return methods
}

// mergeHeaders copies h into the response headers. Vary values are added,
// everything else replaces what the response already carries.
func mergeHeaders(resp *mux.Response, h http.Header) {
	if resp.Header == nil {
		resp.Header = http.Header{}
	}
	for k, vv := range h {
		if k == "Vary" {
			for _, v := range vv {
				resp.Header.Add(k, v)
			}
			continue
		}
		resp.Header[k] = vv
	}
}
