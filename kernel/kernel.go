// Package kernel runs requests through a global middleware pipeline into a
// mux.Router and renders the errors that escape it.
package kernel

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/vitalvas/switchboard/mux"
	"github.com/vitalvas/switchboard/muxhandlers"
)

// Kernel is the HTTP entry point of an application. Every request is sent
// through the global middleware, in order, and then dispatched by the
// router. Errors are reported and rendered by the ErrorHandler.
type Kernel struct {
	router *mux.Router
	errors *ErrorHandler
	logger logrus.FieldLogger

	mu         sync.RWMutex
	middleware []mux.Middleware
	skip       bool
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithLogger sets the logger. By default log output is discarded.
func WithLogger(l logrus.FieldLogger) Option {
	return func(k *Kernel) {
		if l != nil {
			k.logger = l
		}
	}
}

// WithErrorHandler replaces the error handler.
func WithErrorHandler(h *ErrorHandler) Option {
	return func(k *Kernel) {
		if h != nil {
			k.errors = h
		}
	}
}

// WithMiddleware appends global middleware.
func WithMiddleware(mws ...mux.Middleware) Option {
	return func(k *Kernel) {
		k.middleware = append(k.middleware, mws...)
	}
}

// New returns a kernel dispatching to r.
func New(r *mux.Router, opts ...Option) *Kernel {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	k := &Kernel{
		router: r,
		logger: discard,
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.errors == nil {
		k.errors = &ErrorHandler{}
	}
	if k.errors.Logger == nil {
		k.errors.Logger = k.logger
	}
	return k
}

// Bootstrap builds a kernel for r from cfg. Middleware aliases, groups and
// priority are synced to the router. Configured CORS and body parsing
// become the first global middleware, followed by the Global ids, which
// must be registered on the router. Middleware passed with WithMiddleware
// runs after them.
func Bootstrap(r *mux.Router, cfg Config, opts ...Option) (*Kernel, error) {
	k := New(r, append([]Option{WithErrorHandler(&ErrorHandler{
		Debug:    cfg.Debug,
		LoginURL: cfg.LoginURL,
	})}, opts...)...)

	k.syncMiddlewareToRouter(cfg.Middleware)

	var global []mux.Middleware

	if cfg.BodyParsing != nil {
		mw, err := muxhandlers.BodyParsingMiddleware(*cfg.BodyParsing)
		if err != nil {
			return nil, fmt.Errorf("kernel: body parsing: %w", err)
		}
		global = append(global, mw)
	}

	if cfg.CORS != nil {
		mw, err := muxhandlers.CORSMiddleware(r, *cfg.CORS)
		if err != nil {
			return nil, fmt.Errorf("kernel: cors: %w", err)
		}
		global = append(global, mw)
	}

	if len(cfg.Middleware.Global) > 0 {
		stack, err := r.MiddlewareStack(cfg.Middleware.Global)
		if err != nil {
			return nil, fmt.Errorf("kernel: global middleware: %w", err)
		}
		global = append(global, stack...)
	}

	k.PrependMiddleware(global...)
	return k, nil
}

// syncMiddlewareToRouter copies the middleware wiring to the router.
func (k *Kernel) syncMiddlewareToRouter(cfg MiddlewareConfig) {
	if cfg.Priority != nil {
		k.router.SetMiddlewarePriority(cfg.Priority)
	}
	for name, mws := range cfg.Groups {
		k.router.MiddlewareGroup(name, mws)
	}
	for name, id := range cfg.Aliases {
		k.router.AliasMiddleware(name, id)
	}
}

// PushMiddleware appends global middleware.
func (k *Kernel) PushMiddleware(mws ...mux.Middleware) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.middleware = append(k.middleware, mws...)
	return k
}

// PrependMiddleware inserts global middleware before the existing ones.
func (k *Kernel) PrependMiddleware(mws ...mux.Middleware) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.middleware = append(append([]mux.Middleware(nil), mws...), k.middleware...)
	return k
}

// SkipMiddleware disables global and route middleware, for tests.
func (k *Kernel) SkipMiddleware(skip bool) *Kernel {
	k.mu.Lock()
	k.skip = skip
	k.mu.Unlock()
	k.router.SkipMiddleware(skip)
	return k
}

// Router returns the router the kernel dispatches to.
func (k *Kernel) Router() *mux.Router {
	return k.router
}

// ErrorHandler returns the error handler.
func (k *Kernel) ErrorHandler() *ErrorHandler {
	return k.errors
}

// SendRequestThroughRouter runs req through the global middleware and the
// router without rendering errors.
func (k *Kernel) SendRequestThroughRouter(req *http.Request) (*mux.Response, error) {
	k.mu.RLock()
	var stack []mux.Middleware
	if !k.skip {
		stack = append(stack, k.middleware...)
	}
	k.mu.RUnlock()

	return mux.NewPipeline().
		Send(req).
		Through(stack...).
		Then(k.router.Dispatch)
}

// Handle runs req through the kernel. Errors are reported and rendered, so
// Handle always returns a response.
func (k *Kernel) Handle(req *http.Request) *mux.Response {
	resp, err := k.SendRequestThroughRouter(req)
	if err != nil {
		k.errors.Report(req, err)
		return k.errors.Render(req, err)
	}
	if resp == nil {
		k.logger.WithFields(logrus.Fields{
			"method": req.Method,
			"path":   req.URL.Path,
		}).Warn("middleware returned no response")
		return k.errors.Render(req, errors.New("kernel: no response"))
	}
	return resp
}

// ServeHTTP implements http.Handler.
func (k *Kernel) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if err := k.Handle(req).Send(w); err != nil {
		k.logger.WithError(err).Debug("write response")
	}
}
