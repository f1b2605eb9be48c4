package kernel

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/vitalvas/switchboard/mux"
	"github.com/vitalvas/switchboard/muxhandlers"
)

// ErrorHandler reports and renders errors that escape the kernel pipeline.
type ErrorHandler struct {
	// Debug adds the error chain to rendered responses.
	Debug bool

	// LoginURL is the redirect target for unauthenticated HTML requests.
	// Defaults to "/login".
	LoginURL string

	// Logger receives reported errors. When nil, nothing is logged.
	Logger logrus.FieldLogger

	// ShouldReturnJSON decides the response format. Defaults to WantsJSON.
	ShouldReturnJSON func(r *http.Request) bool
}

var errorPage = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Status}} {{.Title}}</title>
</head>
<body>
<h1>{{.Status}} | {{.Title}}</h1>
{{- if .Chain}}
<pre>
{{- range .Chain}}
{{.}}
{{- end}}
</pre>
{{- end}}
</body>
</html>
`))

type errorPageData struct {
	Status int
	Title  string
	Chain  []string
}

// ShouldReport reports whether err is logged. Errors carrying a client
// status below 500 are expected outcomes and are not.
func (h *ErrorHandler) ShouldReport(err error) bool {
	var re *mux.ResponseError
	if errors.As(err, &re) {
		return false
	}
	var sc mux.StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode() >= http.StatusInternalServerError
	}
	return true
}

// Report logs err when ShouldReport allows it.
func (h *ErrorHandler) Report(r *http.Request, err error) {
	if h.Logger == nil || !h.ShouldReport(err) {
		return
	}
	h.Logger.WithError(err).WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Error("request failed")
}

// Render converts err into a response. A *mux.ResponseError yields its
// response; an authentication failure yields 401 JSON or a redirect to the
// login page; everything else is rendered as JSON or HTML with the status
// and headers of the error, or 500.
func (h *ErrorHandler) Render(r *http.Request, err error) *mux.Response {
	var re *mux.ResponseError
	if errors.As(err, &re) && re.Response != nil {
		return re.Response
	}

	var rs mux.Responsable
	if errors.As(err, &rs) {
		if resp, rerr := rs.ToResponse(r); rerr == nil && resp != nil {
			return resp
		}
	}

	if errors.Is(err, muxhandlers.ErrUnauthenticated) {
		return h.unauthenticated(r, err)
	}

	if h.wantsJSON(r) {
		return h.renderJSON(err)
	}
	return h.renderHTML(err)
}

func (h *ErrorHandler) wantsJSON(r *http.Request) bool {
	if h.ShouldReturnJSON != nil {
		return h.ShouldReturnJSON(r)
	}
	return WantsJSON(r)
}

func (h *ErrorHandler) unauthenticated(r *http.Request, err error) *mux.Response {
	if !h.wantsJSON(r) {
		loginURL := h.LoginURL
		if loginURL == "" {
			loginURL = "/login"
		}
		return mux.Redirect(loginURL, http.StatusFound)
	}

	resp := h.jsonResponse(http.StatusUnauthorized, map[string]any{"message": clientMessage(err)})
	copyHeaders(resp, err)
	return resp
}

func (h *ErrorHandler) renderJSON(err error) *mux.Response {
	code := statusOf(err)

	body := map[string]any{"message": clientMessage(err)}
	if h.Debug {
		body = map[string]any{
			"message":   err.Error(),
			"exception": fmt.Sprintf("%T", err),
			"chain":     errorChain(err),
		}
	}

	resp := h.jsonResponse(code, body)
	copyHeaders(resp, err)
	return resp
}

func (h *ErrorHandler) jsonResponse(code int, body map[string]any) *mux.Response {
	resp, err := mux.JSON(code, body)
	if err != nil {
		resp = mux.NewResponse(code, nil, []byte(`{"message":"Server Error"}`))
		resp.Header.Set("Content-Type", "application/json")
	}
	return resp
}

func (h *ErrorHandler) renderHTML(err error) *mux.Response {
	code := statusOf(err)

	data := errorPageData{Status: code, Title: http.StatusText(code)}
	if h.Debug {
		data.Chain = errorChain(err)
	}

	var buf bytes.Buffer
	if terr := errorPage.Execute(&buf, data); terr != nil {
		buf.Reset()
		_, _ = io.WriteString(&buf, http.StatusText(code))
	}

	resp := mux.NewResponse(code, nil, buf.Bytes())
	resp.Header.Set("Content-Type", "text/html; charset=utf-8")
	copyHeaders(resp, err)
	return resp
}

// statusOf returns the status carried by err, or 500.
func statusOf(err error) int {
	var sc mux.StatusCoder
	if errors.As(err, &sc) && sc.StatusCode() > 0 {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// clientMessage returns the message safe to show outside debug mode. Only
// HTTP errors expose their own message.
func clientMessage(err error) string {
	var he *mux.HTTPError
	if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
		return he.Error()
	}
	var sc mux.StatusCoder
	if errors.As(err, &sc) && sc.StatusCode() < http.StatusInternalServerError {
		return http.StatusText(sc.StatusCode())
	}
	return "Server Error"
}

// errorChain lists the messages of err and the errors it wraps.
func errorChain(err error) []string {
	var chain []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T: %s", e, e.Error()))
	}
	return chain
}

func copyHeaders(resp *mux.Response, err error) {
	var sc mux.StatusCoder
	if !errors.As(err, &sc) {
		return
	}
	for k, vv := range sc.Headers() {
		for _, v := range vv {
			resp.Header.Add(k, v)
		}
	}
}
