package mux

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
)

// InvokeMethod is the method called on an invokable controller registered
// without an explicit "@method" suffix.
const InvokeMethod = "Invoke"

// Action is what a route runs once matched. The set of implementations is
// closed: a route runs either a HandlerAction or a ControllerAction.
type Action interface {
	fmt.Stringer
	isAction()
}

// HandlerAction runs an inline function. Func may take any mix of
// context.Context, *http.Request, *Route, scalar path parameters and
// container-provided services, and must return (), (T), (error) or
// (T, error).
type HandlerAction struct {
	Func any
}

func (HandlerAction) isAction() {}

func (a HandlerAction) String() string {
	return "Closure"
}

// ControllerAction runs Method on a controller produced by the factory
// registered under Controller.
type ControllerAction struct {
	Controller string
	Method     string
}

func (ControllerAction) isAction() {}

func (a ControllerAction) String() string {
	return a.Controller + "@" + a.Method
}

// ParseAction converts a registration value into an Action.
//
// Accepted values are an Action, a function, a "Controller@method" string and
// a bare "Controller" string naming an invokable controller.
func ParseAction(v any) (Action, error) {
	switch a := v.(type) {
	case nil:
		return nil, errors.New("mux: route action is nil")
	case Action:
		return a, nil
	case Handler:
		return HandlerAction{Func: a}, nil
	case func(*http.Request) (*Response, error):
		return HandlerAction{Func: a}, nil
	case string:
		return parseControllerAction(a)
	}

	if reflect.TypeOf(v).Kind() == reflect.Func {
		return HandlerAction{Func: v}, nil
	}

	return nil, fmt.Errorf("mux: unsupported route action type %T", v)
}

func parseControllerAction(s string) (ControllerAction, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ControllerAction{}, errors.New("mux: empty controller action")
	}

	controller, method, found := strings.Cut(s, "@")
	if !found {
		method = InvokeMethod
	}
	if controller == "" || method == "" {
		return ControllerAction{}, fmt.Errorf("mux: malformed controller action %q", s)
	}

	return ControllerAction{Controller: controller, Method: method}, nil
}
