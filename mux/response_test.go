package mux

import (
	"encoding/xml"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userView struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type greeting string

func (g greeting) String() string { return "hello " + string(g) }

type responsableUser struct {
	name string
	err  error
}

func (u responsableUser) ToResponse(*http.Request) (*Response, error) {
	if u.err != nil {
		return nil, u.err
	}
	return Text(http.StatusCreated, u.name), nil
}

func TestResponseConstructors(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		resp := Text(http.StatusOK, "hi")
		assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))
		assert.Equal(t, "hi", string(resp.Body))
	})

	t.Run("json is indented", func(t *testing.T) {
		resp, err := JSON(http.StatusCreated, map[string]int{"a": 1})
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.Equal(t, "{\n    \"a\": 1\n}", string(resp.Body))
	})

	t.Run("json encoding errors", func(t *testing.T) {
		_, err := JSON(http.StatusOK, make(chan int))
		assert.Error(t, err)
	})

	t.Run("xml", func(t *testing.T) {
		type item struct {
			XMLName xml.Name `xml:"item"`
			ID      int      `xml:"id"`
		}
		resp, err := XML(http.StatusOK, item{ID: 3})
		require.NoError(t, err)
		assert.Equal(t, "application/xml", resp.Header.Get("Content-Type"))
		assert.Equal(t, "<item><id>3</id></item>", string(resp.Body))
	})

	t.Run("redirect", func(t *testing.T) {
		resp := Redirect("/login?next=<x>", 0)
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/login?next=<x>", resp.Header.Get("Location"))
		assert.Contains(t, string(resp.Body), "/login?next=&lt;x&gt;")
	})

	t.Run("no content", func(t *testing.T) {
		resp := NoContent()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Empty(t, resp.Body)
	})
}

func TestResponseSend(t *testing.T) {
	t.Run("writes headers, status and body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		resp := Text(http.StatusAccepted, "queued").WithHeader("X-Job", "1")
		require.NoError(t, resp.Send(rec))

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("X-Job"))
		assert.Equal(t, "queued", rec.Body.String())
	})

	t.Run("zero status defaults to 200", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.NoError(t, (&Response{}).Send(rec))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("with header on a bare response", func(t *testing.T) {
		resp := (&Response{}).WithHeader("X-A", "b")
		assert.Equal(t, "b", resp.Header.Get("X-A"))
	})
}

func TestPrepareResponse(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	existing := NoContent()

	tests := []struct {
		name        string
		in          any
		status      int
		contentType string
		body        string
	}{
		{"nil", nil, http.StatusOK, "text/html", ""},
		{"string", "hello", http.StatusOK, "text/html", "hello"},
		{"bytes", []byte("raw"), http.StatusOK, "text/html", "raw"},
		{"stringer", greeting("bob"), http.StatusOK, "text/html", "hello bob"},
		{"int", 42, http.StatusOK, "text/html", "42"},
		{"bool", true, http.StatusOK, "text/html", "true"},
		{"struct", userView{ID: 1, Name: "ann"}, http.StatusOK, "application/json", "{\n    \"id\": 1,\n    \"name\": \"ann\"\n}"},
		{"pointer to struct", &userView{ID: 2}, http.StatusOK, "application/json", "{\n    \"id\": 2,\n    \"name\": \"\"\n}"},
		{"nil pointer", (*userView)(nil), http.StatusOK, "text/html", ""},
		{"slice", []int{1, 2}, http.StatusOK, "application/json", "[\n    1,\n    2\n]"},
		{"responsable", responsableUser{name: "carl"}, http.StatusCreated, "text/html", "carl"},
		{"nil response", (*Response)(nil), http.StatusOK, "text/html", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := PrepareResponse(req, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.contentType, resp.Header.Get("Content-Type"))
			assert.Equal(t, tt.body, string(resp.Body))
		})
	}

	t.Run("response passes through", func(t *testing.T) {
		resp, err := PrepareResponse(req, existing)
		require.NoError(t, err)
		assert.Same(t, existing, resp)
	})

	t.Run("responsable errors", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := PrepareResponse(req, responsableUser{err: boom})
		assert.ErrorIs(t, err, boom)
	})
}
