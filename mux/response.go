package mux

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"net/http"
	"reflect"
)

// Response is the uniform value produced by route dispatch. It is written to
// the client by Send.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Responsable is implemented by values that know how to turn themselves into
// a Response for the given request.
type Responsable interface {
	ToResponse(r *http.Request) (*Response, error)
}

// NewResponse returns a response with the given status, headers and body.
// A nil header is replaced with an empty one.
func NewResponse(code int, header http.Header, body []byte) *Response {
	if header == nil {
		header = http.Header{}
	}
	return &Response{
		StatusCode: code,
		Header:     header,
		Body:       body,
	}
}

// Text returns a text/html response with the given status code and body.
func Text(code int, body string) *Response {
	resp := NewResponse(code, nil, []byte(body))
	resp.Header.Set("Content-Type", "text/html")
	return resp
}

// NoContent returns an empty 204 No Content response.
func NoContent() *Response {
	return NewResponse(http.StatusNoContent, nil, nil)
}

// JSON encodes v as indented JSON and returns it as an application/json
// response with the given status code.
func JSON(code int, v any) (*Response, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	resp := NewResponse(code, nil, bytes.TrimRight(buf.Bytes(), "\n"))
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}

// XML encodes v as XML and returns it as an application/xml response with
// the given status code.
func XML(code int, v any) (*Response, error) {
	var buf bytes.Buffer
	if err := xml.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}

	resp := NewResponse(code, nil, buf.Bytes())
	resp.Header.Set("Content-Type", "application/xml")
	return resp, nil
}

// Redirect returns a redirect response to url with a small HTML body for
// clients that ignore the Location header. A zero code defaults to 302 Found.
func Redirect(url string, code int) *Response {
	if code == 0 {
		code = http.StatusFound
	}
	escaped := html.EscapeString(url)
	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
    <head>
        <meta charset="UTF-8" />
        <meta http-equiv="refresh" content="0;url='%[1]s'" />
        <title>Redirecting to %[1]s</title>
    </head>
    <body>
        Redirecting to <a href="%[1]s">%[1]s</a>.
    </body>
</html>`, escaped)

	resp := NewResponse(code, nil, []byte(body))
	resp.Header.Set("Location", url)
	resp.Header.Set("Content-Type", "text/html; charset=utf-8")
	return resp
}

// WithHeader sets a header on the response and returns it.
func (r *Response) WithHeader(key, value string) *Response {
	if r.Header == nil {
		r.Header = http.Header{}
	}
	r.Header.Set(key, value)
	return r
}

// Send writes the response headers, status code and body to w.
func (r *Response) Send(w http.ResponseWriter) error {
	for k, vv := range r.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}

	code := r.StatusCode
	if code == 0 {
		code = http.StatusOK
	}
	w.WriteHeader(code)

	if len(r.Body) == 0 {
		return nil
	}
	_, err := w.Write(r.Body)
	return err
}

// PrepareResponse normalizes a handler return value into a Response.
//
// A *Response passes through unchanged and a Responsable converts itself.
// Strings, byte slices, fmt.Stringer values and scalars become 200 text/html
// responses. Maps, slices, arrays, structs and json.Marshaler values are
// encoded as JSON. A nil value yields an empty 200 response.
func PrepareResponse(req *http.Request, v any) (*Response, error) {
	if rs, ok := v.(Responsable); ok {
		resp, err := rs.ToResponse(req)
		if err != nil {
			return nil, err
		}
		v = resp
	}

	switch t := v.(type) {
	case nil:
		return Text(http.StatusOK, ""), nil
	case *Response:
		if t == nil {
			return Text(http.StatusOK, ""), nil
		}
		return t, nil
	case string:
		return Text(http.StatusOK, t), nil
	case []byte:
		resp := NewResponse(http.StatusOK, nil, t)
		resp.Header.Set("Content-Type", "text/html")
		return resp, nil
	case fmt.Stringer:
		return Text(http.StatusOK, t.String()), nil
	case json.Marshaler:
		return JSON(http.StatusOK, t)
	}

	rv := reflect.ValueOf(v)
	kind := rv.Kind()
	if kind == reflect.Pointer {
		if rv.IsNil() {
			return Text(http.StatusOK, ""), nil
		}
		kind = rv.Elem().Kind()
	}

	switch kind {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Interface:
		return JSON(http.StatusOK, v)
	}

	return Text(http.StatusOK, fmt.Sprint(v)), nil
}
