package mux

import (
	"fmt"
	"reflect"
	"sync"
)

// Container resolves services by type. The router uses it to build
// controllers and to fill action parameters that are not path parameters.
type Container interface {
	Resolve(t reflect.Type) (any, error)
}

// ServiceFactory builds a fresh service instance.
type ServiceFactory func() (any, error)

// ServiceMap is a Container backed by one factory per type. Factories run on
// every Resolve call; nothing is cached.
type ServiceMap struct {
	mu        sync.RWMutex
	factories map[reflect.Type]ServiceFactory
}

// NewServiceMap returns an empty ServiceMap.
func NewServiceMap() *ServiceMap {
	return &ServiceMap{factories: make(map[reflect.Type]ServiceFactory)}
}

// Provide registers the factory for t, replacing any earlier one.
func (s *ServiceMap) Provide(t reflect.Type, factory ServiceFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[t] = factory
}

// Resolve implements Container.
func (s *ServiceMap) Resolve(t reflect.Type) (any, error) {
	s.mu.RLock()
	factory, ok := s.factories[t]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("mux: no provider for %s: %w", t, ErrUnresolvable)
	}

	v, err := factory()
	if err != nil {
		return nil, fmt.Errorf("mux: resolving %s: %w", t, err)
	}
	if v == nil {
		return reflect.Zero(t).Interface(), nil
	}
	if !reflect.TypeOf(v).AssignableTo(t) {
		return nil, fmt.Errorf("mux: provider for %s returned %T: %w", t, v, ErrUnresolvable)
	}
	return v, nil
}

// Provide registers a typed factory for T on s.
func Provide[T any](s *ServiceMap, factory func() (T, error)) {
	s.Provide(reflect.TypeFor[T](), func() (any, error) {
		return factory()
	})
}

// Resolve fetches a T from c.
func Resolve[T any](c Container) (T, error) {
	var zero T
	if c == nil {
		return zero, fmt.Errorf("mux: no container for %s: %w", reflect.TypeFor[T](), ErrUnresolvable)
	}
	v, err := c.Resolve(reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("mux: container returned %T for %s: %w", v, reflect.TypeFor[T](), ErrUnresolvable)
	}
	return t, nil
}
