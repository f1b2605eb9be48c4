package mux

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop() string { return "" }

func TestNewRoute(t *testing.T) {
	t.Run("GET implies HEAD", func(t *testing.T) {
		r := NewRoute([]string{"get"}, "/users", HandlerAction{Func: noop})
		require.NoError(t, r.GetError())
		assert.Equal(t, []string{"GET", "HEAD"}, r.GetMethods())
	})

	t.Run("HEAD is not duplicated", func(t *testing.T) {
		r := NewRoute([]string{"HEAD", "GET"}, "/users", HandlerAction{Func: noop})
		assert.Equal(t, []string{"HEAD", "GET"}, r.GetMethods())
	})

	t.Run("POST alone has no HEAD", func(t *testing.T) {
		r := NewRoute([]string{http.MethodPost}, "/users", HandlerAction{Func: noop})
		assert.Equal(t, []string{"POST"}, r.GetMethods())
	})

	t.Run("rejects invalid method tokens", func(t *testing.T) {
		r := NewRoute([]string{"GE T"}, "/users", HandlerAction{Func: noop})
		assert.Error(t, r.GetError())
	})

	t.Run("rejects empty method set", func(t *testing.T) {
		r := NewRoute(nil, "/users", HandlerAction{Func: noop})
		assert.Error(t, r.GetError())
	})

	t.Run("rejects nil action", func(t *testing.T) {
		r := NewRoute([]string{"GET"}, "/users", nil)
		assert.Error(t, r.GetError())
	})

	t.Run("normalizes URI", func(t *testing.T) {
		tests := []struct {
			in   string
			want string
		}{
			{"/", "/"},
			{"", "/"},
			{"/users/", "users"},
			{"//api//users//{id}", "api/users/{id}"},
			{"users", "users"},
		}
		for _, tt := range tests {
			r := NewRoute([]string{"GET"}, tt.in, HandlerAction{Func: noop})
			assert.Equal(t, tt.want, r.GetURI(), tt.in)
		}
	})

	t.Run("records parameter names in order", func(t *testing.T) {
		r := NewRoute([]string{"GET"}, "/posts/{post}/comments/{comment?}", HandlerAction{Func: noop})
		assert.Equal(t, []string{"post", "comment"}, r.ParameterNames())
		assert.False(t, r.IsOptional("post"))
		assert.True(t, r.IsOptional("comment"))
	})

	t.Run("strips binding fields from the URI", func(t *testing.T) {
		r := NewRoute([]string{"GET"}, "/posts/{post:slug}/{page:number?}", HandlerAction{Func: noop})
		require.NoError(t, r.GetError())
		assert.Equal(t, "posts/{post}/{page?}", r.GetURI())
		assert.Equal(t, map[string]string{"post": "slug", "page": "number"}, r.BindingFields())

		field, ok := r.BindingFieldFor("post")
		assert.True(t, ok)
		assert.Equal(t, "slug", field)
	})

	t.Run("rejects duplicated placeholders", func(t *testing.T) {
		r := NewRoute([]string{"GET"}, "/{id}/{id}", HandlerAction{Func: noop})
		assert.ErrorContains(t, r.GetError(), "duplicated route variable")
	})

	t.Run("rejects unbalanced braces", func(t *testing.T) {
		r := NewRoute([]string{"GET"}, "/{id", HandlerAction{Func: noop})
		assert.ErrorContains(t, r.GetError(), "unbalanced braces")
	})

	t.Run("rejects empty placeholder names", func(t *testing.T) {
		r := NewRoute([]string{"GET"}, "/users/{}", HandlerAction{Func: noop})
		assert.ErrorContains(t, r.GetError(), "missing name")
	})
}

func TestRouteAttributes(t *testing.T) {
	t.Run("Name appends to the existing name", func(t *testing.T) {
		r := NewRoute([]string{"GET"}, "/", HandlerAction{Func: noop})
		r.Name("users.").Name("show")
		assert.Equal(t, "users.show", r.GetName())
	})

	t.Run("Named matches exact and wildcard names", func(t *testing.T) {
		r := NewRoute([]string{"GET"}, "/", HandlerAction{Func: noop}).Name("users.show")
		assert.True(t, r.Named("users.show"))
		assert.True(t, r.Named("posts.*", "users.*"))
		assert.False(t, r.Named("users.index"))
	})

	t.Run("Prefix prepends to the URI", func(t *testing.T) {
		r := NewRoute([]string{"GET"}, "/{id}", HandlerAction{Func: noop})
		r.Prefix("/users/").Prefix("api")
		assert.Equal(t, "api/users/{id}", r.GetURI())
		assert.Equal(t, "api/users", r.GetPrefix())
	})

	t.Run("middleware declarations accumulate", func(t *testing.T) {
		r := NewRoute([]string{"GET"}, "/", HandlerAction{Func: noop})
		r.Middleware("auth").Middleware("throttle:60,1").WithoutMiddleware("csrf")
		assert.Equal(t, []string{"auth", "throttle:60,1"}, r.GetMiddleware())
		assert.Equal(t, []string{"csrf"}, r.GetExcludedMiddleware())
	})

	t.Run("Use assigns distinct inline ids", func(t *testing.T) {
		mw := MiddlewareFunc(func(r *http.Request, next Handler) (*Response, error) { return next(r) })
		r := NewRoute([]string{"GET"}, "/", HandlerAction{Func: noop}).Use(mw, mw)
		ids := r.GetMiddleware()
		require.Len(t, ids, 2)
		assert.NotEqual(t, ids[0], ids[1])
		assert.Contains(t, ids[0], "inline#")
	})

	t.Run("wheres set and override", func(t *testing.T) {
		r := NewRoute([]string{"GET"}, "/{id}", HandlerAction{Func: noop})
		r.SetWheres(map[string]string{"id": "[a-z]+"}).Where("id", "[0-9]+")
		assert.Equal(t, map[string]string{"id": "[0-9]+"}, r.GetWheres())
	})
}

func TestRouteBinding(t *testing.T) {
	t.Run("parameters before binding fail", func(t *testing.T) {
		r := NewRoute([]string{"GET"}, "/users/{user}", HandlerAction{Func: noop})
		assert.False(t, r.IsBound())

		_, err := r.Parameters()
		assert.ErrorIs(t, err, ErrRouteNotBound)
		assert.ErrorIs(t, r.SetParameter("user", "x"), ErrRouteNotBound)
		assert.ErrorIs(t, r.ForgetParameter("user"), ErrRouteNotBound)
		assert.Equal(t, "", r.Parameter("user"))
	})

	t.Run("Bind returns a copy and keeps declared non-empty values", func(t *testing.T) {
		r := NewRoute([]string{"GET"}, "/users/{user}/{tab?}", HandlerAction{Func: noop})
		bound := r.Bind(map[string]string{"user": "US123", "tab": "", "other": "x"})

		assert.NotSame(t, r, bound)
		assert.False(t, r.IsBound())
		assert.True(t, bound.IsBound())

		params, err := bound.Parameters()
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"user": "US123"}, params)
		assert.Equal(t, "US123", bound.Parameter("user"))
		assert.True(t, bound.HasParameter("user"))
		assert.False(t, bound.HasParameter("tab"))
	})

	t.Run("empty optional value behaves like an unset one", func(t *testing.T) {
		r := NewRoute([]string{"GET"}, "/posts/{page?}", HandlerAction{Func: noop})
		empty, err := r.Bind(map[string]string{"page": ""}).ParametersWithoutNulls()
		require.NoError(t, err)
		unset, err := r.Bind(nil).ParametersWithoutNulls()
		require.NoError(t, err)
		assert.Equal(t, unset, empty)
		assert.Empty(t, empty)
	})

	t.Run("set and forget on a bound route", func(t *testing.T) {
		bound := NewRoute([]string{"GET"}, "/users/{user}", HandlerAction{Func: noop}).
			Bind(map[string]string{"user": "1"})

		require.NoError(t, bound.SetParameter("extra", "v"))
		assert.Equal(t, "v", bound.Parameter("extra"))

		require.NoError(t, bound.ForgetParameter("user"))
		assert.False(t, bound.HasParameter("user"))

		require.NoError(t, bound.SetParameter("blank", ""))
		params, err := bound.ParametersWithoutNulls()
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"extra": "v"}, params)
	})
}

func TestRouteURL(t *testing.T) {
	t.Run("builds path with parameters", func(t *testing.T) {
		r := NewRoute([]string{"GET"}, "/users/{user}", HandlerAction{Func: noop})
		u, err := r.URL(map[string]string{"user": "42"})
		require.NoError(t, err)
		assert.Equal(t, "/users/42", u)
	})

	t.Run("root route", func(t *testing.T) {
		r := NewRoute([]string{"GET"}, "/", HandlerAction{Func: noop})
		u, err := r.URL(nil)
		require.NoError(t, err)
		assert.Equal(t, "/", u)
	})

	t.Run("drops missing optional parameters", func(t *testing.T) {
		r := NewRoute([]string{"GET"}, "/posts/{page?}", HandlerAction{Func: noop})
		u, err := r.URL(nil)
		require.NoError(t, err)
		assert.Equal(t, "/posts", u)
	})

	t.Run("appends extra parameters as query", func(t *testing.T) {
		r := NewRoute([]string{"GET"}, "/users/{user}", HandlerAction{Func: noop})
		u, err := r.URL(map[string]string{"user": "1", "sort": "name", "a": "b"})
		require.NoError(t, err)
		assert.Equal(t, "/users/1?a=b&sort=name", u)
	})

	t.Run("escapes values", func(t *testing.T) {
		r := NewRoute([]string{"GET"}, "/files/{name}", HandlerAction{Func: noop})
		u, err := r.URL(map[string]string{"name": "a b"})
		require.NoError(t, err)
		assert.Equal(t, "/files/a%20b", u)
	})

	t.Run("fails on missing required parameter", func(t *testing.T) {
		r := NewRoute([]string{"GET"}, "/users/{user}", HandlerAction{Func: noop})
		_, err := r.URL(nil)
		assert.ErrorContains(t, err, `missing route variable "user"`)
	})

	t.Run("fails when value violates the constraint", func(t *testing.T) {
		r := NewRoute([]string{"GET"}, "/users/{user}", HandlerAction{Func: noop}).WhereNumber("user")
		_, err := r.URL(map[string]string{"user": "abc"})
		assert.ErrorContains(t, err, "doesn't match")
	})
}
