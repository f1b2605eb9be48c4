package mux

import "net/http"

// Pipeline sends a request through a list of middleware around a
// destination handler.
//
//	resp, err := mux.NewPipeline().
//		Send(req).
//		Through(cors, auth).
//		Then(handler)
//
// Middleware run in the order given: the first one is the outermost. Errors
// returned by any stage propagate unchanged to the caller of Then.
type Pipeline struct {
	req   *http.Request
	pipes []Middleware
}

// NewPipeline returns an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Send sets the request sent through the pipeline.
func (p *Pipeline) Send(req *http.Request) *Pipeline {
	p.req = req
	return p
}

// Through sets the middleware the request passes through.
func (p *Pipeline) Through(mws ...Middleware) *Pipeline {
	p.pipes = mws
	return p
}

// Then runs the pipeline with dest as the innermost handler.
func (p *Pipeline) Then(dest Handler) (*Response, error) {
	return p.Handler(dest)(p.req)
}

// Handler composes the middleware around dest without running it.
func (p *Pipeline) Handler(dest Handler) Handler {
	h := dest
	for i := len(p.pipes) - 1; i >= 0; i-- {
		mw, next := p.pipes[i], h
		if mw == nil {
			continue
		}
		h = func(r *http.Request) (*Response, error) {
			return mw.Handle(r, next)
		}
	}
	return h
}
