package muxhandlers

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"github.com/vitalvas/switchboard/mux"
)

// ErrNoAuthSource is returned when BasicAuthConfig has neither ValidateFunc
// nor Credentials configured.
var ErrNoAuthSource = errors.New("basic auth: at least one of ValidateFunc or Credentials must be set")

// BasicAuthConfig configures the Basic Auth middleware behaviour.
//
// Spec reference: https://www.rfc-editor.org/rfc/rfc7617
type BasicAuthConfig struct {
	// Realm is the authentication realm sent in the WWW-Authenticate header.
	// Defaults to "Restricted" when empty.
	Realm string

	// ValidateFunc is called to validate credentials dynamically.
	// Takes priority over Credentials when both are set.
	ValidateFunc func(username, password string) bool

	// Credentials is a static map of username -> password pairs.
	// Compared using SHA-256 hashed constant-time comparison to prevent
	// timing attacks, including length-based leaks.
	Credentials map[string]string
}

// BasicAuthMiddleware returns a middleware that implements HTTP Basic
// Authentication per RFC 7617. It validates the Authorization header and
// responds with 401 Unauthorized when credentials are missing or invalid.
// On success the username is exposed as the UserAttribute request attribute.
//
// It returns ErrNoAuthSource if both ValidateFunc and Credentials are nil/empty.
func BasicAuthMiddleware(cfg BasicAuthConfig) (mux.Middleware, error) {
	if cfg.ValidateFunc == nil && len(cfg.Credentials) == 0 {
		return nil, ErrNoAuthSource
	}

	realm := cfg.Realm
	if realm == "" {
		realm = "Restricted"
	}
	challenge := fmt.Sprintf("Basic realm=%q", realm)

	check := cfg.ValidateFunc
	if check == nil {
		check = func(username, password string) bool {
			expected, exists := cfg.Credentials[username]
			// Compare for unknown users too, so timing does not reveal them.
			match := constantTimeEqual(password, expected)
			return exists && match
		}
	}

	return mux.MiddlewareFunc(func(r *http.Request, next mux.Handler) (*mux.Response, error) {
		username, password, ok := r.BasicAuth()
		if !ok || !check(username, password) {
			return unauthorized(challenge), nil
		}
		return next(mux.WithAttribute(r, UserAttribute, username))
	}), nil
}

// constantTimeEqual compares the SHA-256 digests of a and b in constant time,
// so inputs of different lengths take the same time too.
func constantTimeEqual(a, b string) bool {
	aHash := sha256.Sum256([]byte(a))
	bHash := sha256.Sum256([]byte(b))

	return subtle.ConstantTimeCompare(aHash[:], bHash[:]) == 1
}

// unauthorized is the empty 401 reply carrying the challenge.
func unauthorized(challenge string) *mux.Response {
	return mux.NewResponse(http.StatusUnauthorized, nil, nil).WithHeader("WWW-Authenticate", challenge)
}
