// Package server provides the temporary local HTTP server used to complete the Spotify OAuth flow.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] added first runs first. [Logging] and [Recover] are the middleware installed by [AwaitCallback].
//
// The [BasicRouter] implementation registers [http.ServeMux] method patterns and wraps the whole mux,
// so 404 and 405 responses pass through the middleware as well.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback. It validates the state parameter,
// hands the authorization code to an [Exchanger] and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// The path served is taken from the configured redirect URI, so the registered Spotify redirect
// and the local route always agree.
//
// # Usage
//
// The auth command builds an [OAuthHandler] and calls [AwaitCallback], which binds a listener,
// notifies the caller so it can open the browser, and waits for the redirect or the timeout
// before shutting the server down.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
