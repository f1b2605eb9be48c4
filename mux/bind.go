package mux

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"gopkg.in/yaml.v3"
)

// ParsedBodyAttribute is the attribute holding the decoded request body set
// by body parsing middleware.
const ParsedBodyAttribute = "parsedBody"

// ErrUnsupportedMediaType is returned by DecodeBody for content types it
// cannot decode.
var ErrUnsupportedMediaType = errors.New("unsupported media type")

// BindJSON decodes the request body as JSON into v.
// By default the decoder rejects unknown fields that do not map to exported
// struct fields. Pass false to allow unknown fields.
// Exactly one JSON value must be present in the body; trailing data is an error.
func BindJSON(r *http.Request, v any, allowUnknownFields ...bool) error {
	dec := json.NewDecoder(r.Body)

	if len(allowUnknownFields) == 0 || !allowUnknownFields[0] {
		dec.DisallowUnknownFields()
	}

	if err := dec.Decode(v); err != nil {
		return err
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected trailing data after JSON value")
	}

	return nil
}

// BindXML decodes the request body as XML into v.
// Exactly one XML element must be present in the body; trailing data is an error.
func BindXML(r *http.Request, v any) error {
	dec := xml.NewDecoder(r.Body)

	if err := dec.Decode(v); err != nil {
		return err
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected trailing data after XML value")
	}

	return nil
}

// BindYAML decodes the request body as a single YAML document into v.
func BindYAML(r *http.Request, v any) error {
	dec := yaml.NewDecoder(r.Body)

	if err := dec.Decode(v); err != nil {
		return err
	}

	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return errors.New("unexpected trailing document after YAML value")
	}

	return nil
}

// DecodeBody decodes the request body into a generic value according to its
// Content-Type: JSON and YAML documents decode to maps, slices and scalars,
// and URL-encoded forms decode to map[string]any holding a string for
// single values and []string for repeated ones. An empty body yields nil.
func DecodeBody(r *http.Request) (any, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("mux: %w: %v", ErrUnsupportedMediaType, err)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}

	var v any
	switch mediaType {
	case "application/json":
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, err
		}
	case "application/yaml", "application/x-yaml", "text/yaml":
		if err := yaml.Unmarshal(body, &v); err != nil {
			return nil, err
		}
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, err
		}
		form := make(map[string]any, len(values))
		for k, vv := range values {
			if len(vv) == 1 {
				form[k] = vv[0]
				continue
			}
			form[k] = vv
		}
		v = form
	default:
		return nil, fmt.Errorf("mux: %w: %s", ErrUnsupportedMediaType, mediaType)
	}

	return v, nil
}

// ParsedBody returns the body decoded by body parsing middleware.
func ParsedBody(r *http.Request) (any, bool) {
	return Attribute(r, ParsedBodyAttribute)
}
