package muxhandlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vitalvas/switchboard/mux"
)

// UserAttribute is the request attribute holding the authenticated user.
const UserAttribute = "user"

// ErrNoValidator is returned when AuthConfig.Validator is nil.
var ErrNoValidator = errors.New("auth: a token validator is required")

// ErrUnauthenticated is wrapped by the 401 error returned for requests
// without valid credentials. Validators return it to reject a token.
var ErrUnauthenticated = errors.New("unauthenticated")

// TokenValidator resolves a bearer token to a user. Guards are the
// arguments of the middleware declaration, e.g. "auth:api,admin". A nil user
// with a nil error, or an error wrapping ErrUnauthenticated, rejects the
// request with 401; any other error propagates unchanged.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string, guards []string) (any, error)
}

// TokenValidatorFunc adapts a function to TokenValidator.
type TokenValidatorFunc func(ctx context.Context, token string, guards []string) (any, error)

// ValidateToken implements TokenValidator.
func (f TokenValidatorFunc) ValidateToken(ctx context.Context, token string, guards []string) (any, error) {
	return f(ctx, token, guards)
}

// AuthConfig configures the Authenticate middleware behaviour.
type AuthConfig struct {
	// Validator resolves tokens to users. Required.
	Validator TokenValidator

	// Realm is sent in the WWW-Authenticate challenge. Optional.
	Realm string

	// QueryParam, when set, names a query parameter checked for the token
	// when the Authorization header carries none.
	QueryParam string
}

// AuthMiddleware returns a parameterized middleware that authenticates
// requests with a bearer token (RFC 6750). The declaration arguments are
// passed to the validator as guards. On success the user is exposed as the
// UserAttribute request attribute; otherwise the request fails with a 401
// *mux.HTTPError carrying a Bearer WWW-Authenticate challenge.
//
// It returns ErrNoValidator if Validator is nil.
func AuthMiddleware(cfg AuthConfig) (mux.ParameterizedMiddleware, error) {
	if cfg.Validator == nil {
		return nil, ErrNoValidator
	}

	challenge := "Bearer"
	if cfg.Realm != "" {
		challenge = fmt.Sprintf("Bearer realm=%q", cfg.Realm)
	}

	reject := func(cause error) error {
		h := http.Header{}
		h.Set("WWW-Authenticate", challenge)
		return &mux.HTTPError{
			Code:    http.StatusUnauthorized,
			Message: "Unauthenticated.",
			Header:  h,
			Err:     cause,
		}
	}

	return mux.ParameterizedFunc(func(r *http.Request, next mux.Handler, guards []string) (*mux.Response, error) {
		token := bearerToken(r)
		if token == "" && cfg.QueryParam != "" {
			token = r.URL.Query().Get(cfg.QueryParam)
		}
		if token == "" {
			return nil, reject(ErrUnauthenticated)
		}

		user, err := cfg.Validator.ValidateToken(r.Context(), token, guards)
		switch {
		case errors.Is(err, ErrUnauthenticated):
			return nil, reject(err)
		case err != nil:
			return nil, err
		case user == nil:
			return nil, reject(ErrUnauthenticated)
		}

		return next(mux.WithAttribute(r, UserAttribute, user))
	}), nil
}

// bearerToken extracts the token of an "Authorization: Bearer" header. The
// scheme compares case-insensitively.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// User returns the authenticated user stored by AuthMiddleware or
// BasicAuthMiddleware.
func User(r *http.Request) (any, bool) {
	return mux.Attribute(r, UserAttribute)
}
