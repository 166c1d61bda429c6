package server

import (
	"net/http"
)

// Middleware wraps an [http.Handler]. [Logging] and [Recover] are the ones this package provides.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows the paths it serves, like [OAuthHandler].
type Handler interface {
	http.Handler
	Routes() []string
}

// Router registers handlers behind a shared middleware stack. Implemented by [BasicRouter].
type Router interface {
	http.Handler
	Use(middleware ...Middleware)
	Handle(method, path string, handler http.Handler)
	Handler(handler Handler)
	Patterns() []string
}

var _ Router = (*BasicRouter)(nil)
