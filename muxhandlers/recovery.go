package muxhandlers

import (
	"fmt"
	"io"
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"
	"github.com/vitalvas/switchboard/mux"
)

// RecoveryConfig configures the Recovery middleware behaviour.
type RecoveryConfig struct {
	// Logger receives an error entry for every recovered panic. When nil,
	// nothing is logged.
	Logger logrus.FieldLogger

	// Stack adds the goroutine stack trace to the log entry.
	Stack bool
}

// RecoveryMiddleware returns a middleware that recovers from panics in
// downstream middleware and actions. A panic becomes a 500 *mux.HTTPError
// wrapping the panic value, so the error renderer decides what the client
// sees. http.ErrAbortHandler is re-panicked to keep its abort semantics.
func RecoveryMiddleware(cfg RecoveryConfig) mux.Middleware {
	logger := cfg.Logger
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}

	return mux.MiddlewareFunc(func(r *http.Request, next mux.Handler) (resp *mux.Response, err error) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}

			entry := logger.WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
				"panic":  v,
			})
			if cfg.Stack {
				entry = entry.WithField("stack", string(debug.Stack()))
			}
			entry.Error("panic recovered")

			cause, ok := v.(error)
			if !ok {
				cause = fmt.Errorf("%v", v)
			}
			resp, err = nil, &mux.HTTPError{
				Code: http.StatusInternalServerError,
				Err:  fmt.Errorf("panic: %w", cause),
			}
		}()

		return next(r)
	})
}
