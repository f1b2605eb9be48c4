// Package muxhandlers provides middleware for the mux router.
//
// Every constructor returns a mux.Middleware, so a middleware can be
// registered on the router under an id and declared by routes, groups and
// controllers, or placed in the kernel's global pipeline.
//
// # CORS Middleware
//
// CORSMiddleware implements the CORS protocol per the Fetch Standard. It
// validates the Origin header (RFC 6454), answers preflight OPTIONS requests
// and sets the appropriate response headers. It belongs in the global
// pipeline so it also sees preflight requests to paths without an OPTIONS
// route.
//
//	mw, err := muxhandlers.CORSMiddleware(r, muxhandlers.CORSConfig{
//	    Paths:            []string{"api/*"},
//	    AllowedOrigins:   []string{"https://example.com"},
//	    AllowCredentials: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	k.PushMiddleware(mw)
//
// # Auth Middleware
//
// AuthMiddleware authenticates bearer tokens through a TokenValidator. The
// arguments of the declaration are passed on as guards:
//
//	mw, err := muxhandlers.AuthMiddleware(muxhandlers.AuthConfig{Validator: tokens})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r.RegisterMiddleware("authenticate", mw)
//	r.AliasMiddleware("auth", "authenticate")
//	r.Get("/me", "ProfileController@show").Middleware("auth:api")
//
// # Basic Auth Middleware
//
// BasicAuthMiddleware implements HTTP Basic Authentication per RFC 7617.
// Credentials can be validated via a dynamic callback or a static map.
// Static credential comparison uses constant-time comparison to prevent
// timing attacks.
//
// # Body Parsing Middleware
//
// BodyParsingMiddleware decodes JSON, YAML and form bodies into the
// mux.ParsedBodyAttribute attribute, enforcing a size limit.
package muxhandlers
