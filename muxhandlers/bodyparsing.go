package muxhandlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/vitalvas/switchboard/mux"
)

// ErrInvalidMaxSize is returned when BodyParsingConfig.MaxBytes is negative.
var ErrInvalidMaxSize = errors.New("body parsing: max size must not be negative")

// DefaultMaxBodyBytes is the body size limit used when
// BodyParsingConfig.MaxBytes is zero.
const DefaultMaxBodyBytes int64 = 10 << 20

// BodyParsingConfig configures the Body Parsing middleware behaviour.
type BodyParsingConfig struct {
	// MaxBytes is the maximum accepted body size. Zero means
	// DefaultMaxBodyBytes.
	MaxBytes int64 `yaml:"max_bytes"`

	// Methods is the set of HTTP methods whose bodies are parsed. When nil,
	// defaults to POST, PUT, PATCH, DELETE.
	Methods []string `yaml:"methods"`
}

var defaultParsedMethods = []string{
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// BodyParsingMiddleware returns a middleware that decodes JSON, YAML and
// URL-encoded form bodies with mux.DecodeBody and exposes the result as the
// mux.ParsedBodyAttribute request attribute. The raw body stays readable for
// downstream handlers.
//
// Bodies with other media types pass through untouched. A body larger than
// MaxBytes fails with 413 and a malformed one with 400, both as
// *mux.HTTPError.
func BodyParsingMiddleware(cfg BodyParsingConfig) (mux.Middleware, error) {
	if cfg.MaxBytes < 0 {
		return nil, ErrInvalidMaxSize
	}

	maxBytes := cfg.MaxBytes
	if maxBytes == 0 {
		maxBytes = DefaultMaxBodyBytes
	}

	parsed := methodSet(cfg.Methods, defaultParsedMethods)

	return mux.MiddlewareFunc(func(r *http.Request, next mux.Handler) (*mux.Response, error) {
		if _, ok := parsed[r.Method]; !ok || r.Body == nil || r.Body == http.NoBody {
			return next(r)
		}

		body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, &mux.HTTPError{Code: http.StatusRequestEntityTooLarge, Err: err}
			}
			return nil, &mux.HTTPError{Code: http.StatusBadRequest, Err: err}
		}

		probe := r.WithContext(r.Context())
		probe.Body = io.NopCloser(bytes.NewReader(body))
		v, err := mux.DecodeBody(probe)

		r = r.WithContext(r.Context())
		r.Body = io.NopCloser(bytes.NewReader(body))

		switch {
		case errors.Is(err, mux.ErrUnsupportedMediaType):
			return next(r)
		case err != nil:
			return nil, &mux.HTTPError{Code: http.StatusBadRequest, Message: "malformed request body", Err: err}
		case v == nil:
			return next(r)
		}

		return next(mux.WithAttribute(r, mux.ParsedBodyAttribute, v))
	}), nil
}
