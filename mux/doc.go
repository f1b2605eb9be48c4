// Package mux implements request routing and middleware dispatch: it maps an
// incoming request to a registered action, threads the request through the
// middleware declared for that route and normalizes what the action returns
// into a Response.
//
// The package implements routing semantics based on:
//   - RFC 9110 (HTTP Semantics)
//   - RFC 3986 (URIs)
//
// # Router
//
// Create a router, register routes and serve it:
//
//	r := mux.NewRouter()
//	r.Get("/users/{user}", showUser).Name("users.show")
//	r.Post("/login", "AuthController@login")
//	http.ListenAndServe(":8080", r)
//
// GET routes also accept HEAD. Registering the same method and URI twice
// replaces the earlier route.
//
// # Path Parameters
//
// URIs contain placeholders in curly braces. A trailing question mark makes
// a placeholder optional, and a ":field" suffix records a binding field:
//
//	r.Get("/posts/{post:slug}/comments/{page?}", handler)
//
// Placeholders match one path segment unless constrained with Where or one
// of the macro shortcuts:
//
//	r.Get("/users/{id}", handler).WhereNumber("id")
//	r.Get("/files/{id}", handler).WherePattern("id", "uuid")
//	r.Get("/{lang}/docs", handler).WhereIn("lang", "en", "de")
//
// # Actions
//
// An action is either an inline function or a controller method. Inline
// functions may take context.Context, *http.Request, *Route, scalar path
// parameters and services from the Container:
//
//	r.Get("/users/{id}", func(ctx context.Context, id int64, repo *UserRepo) (*User, error) {
//		return repo.Find(ctx, id)
//	})
//
// Controllers are registered by name and referenced as "Controller@method":
//
//	r.Controllers().Register("UserController", func(c mux.Container) (any, error) {
//		return &UserController{}, nil
//	})
//	r.Get("/users/{id}", "UserController@show")
//
// Return values are normalized by PrepareResponse: strings become text/html,
// maps, slices and structs become JSON, and a *Response passes through.
//
// # Groups
//
// Groups pass a prefix, a name prefix, middleware, a controller, a
// namespace and constraints to everything registered inside them:
//
//	r.Group(mux.GroupAttributes{Prefix: "api", As: "api.", Middleware: []string{"api"}}, func(g *mux.Group) {
//		g.Group(mux.GroupAttributes{Prefix: "users", Controller: "UserController"}, func(g *mux.Group) {
//			g.Get("/{id}", "show").Name("users.show") // api/users/{id}, api.users.show
//		})
//	})
//
// Resource registers the index, store, show, update and destroy routes of an
// API resource.
//
// # Middleware
//
// Middleware are registered under an id, optionally aliased and grouped,
// and declared on routes by name with optional arguments:
//
//	r.RegisterMiddleware("authenticate", auth)
//	r.AliasMiddleware("auth", "authenticate")
//	r.MiddlewareGroup("api", []string{"throttle", "auth:api"})
//	r.SetMiddlewarePriority([]string{"cors", "authenticate"})
//
// Declarations are expanded, excluded entries and duplicates are removed,
// and the result is ordered by the priority list. This happens once per
// route, when the router is finalized.
//
// # Error Handling
//
// Dispatch returns *NotFoundError for unknown paths and
// *MethodNotAllowedError, which carries the Allow header, for known paths
// with an unaccepted method. OPTIONS requests to such paths get a 200 reply
// listing the allowed methods. Both errors implement StatusCoder. A handler
// can finish the request early by returning Abort(resp).
package mux
