package mux

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterService struct {
	n int
}

type greeter interface {
	Greet() string
}

type englishGreeter struct{}

func (englishGreeter) Greet() string { return "hello" }

func TestServiceMap(t *testing.T) {
	t.Run("factories run on every resolve", func(t *testing.T) {
		s := NewServiceMap()
		calls := 0
		Provide(s, func() (*counterService, error) {
			calls++
			return &counterService{n: calls}, nil
		})

		a, err := Resolve[*counterService](s)
		require.NoError(t, err)
		b, err := Resolve[*counterService](s)
		require.NoError(t, err)

		assert.NotSame(t, a, b)
		assert.Equal(t, 2, calls)
	})

	t.Run("interfaces resolve by interface type", func(t *testing.T) {
		s := NewServiceMap()
		Provide(s, func() (greeter, error) { return englishGreeter{}, nil })

		g, err := Resolve[greeter](s)
		require.NoError(t, err)
		assert.Equal(t, "hello", g.Greet())
	})

	t.Run("missing provider is unresolvable", func(t *testing.T) {
		_, err := NewServiceMap().Resolve(reflect.TypeFor[*counterService]())
		assert.ErrorIs(t, err, ErrUnresolvable)
	})

	t.Run("factory errors are wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		s := NewServiceMap()
		s.Provide(reflect.TypeFor[*counterService](), func() (any, error) { return nil, boom })

		_, err := s.Resolve(reflect.TypeFor[*counterService]())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("mistyped provider is rejected", func(t *testing.T) {
		s := NewServiceMap()
		s.Provide(reflect.TypeFor[*counterService](), func() (any, error) { return "nope", nil })

		_, err := s.Resolve(reflect.TypeFor[*counterService]())
		assert.ErrorIs(t, err, ErrUnresolvable)
	})

	t.Run("nil container", func(t *testing.T) {
		_, err := Resolve[*counterService](nil)
		assert.ErrorIs(t, err, ErrUnresolvable)
	})
}
