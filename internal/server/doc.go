// Package server provides HTTP routing, middleware, and the loopback OAuth callback used by the CLI.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order so the first one added runs outermost, following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns internally.
//
// # Middleware
//
//   - [RequestLogger] : uuid request IDs, request-scoped logger, access log and panic recovery
//   - [RateLimit] : per-client token buckets ([ClientLimiter]) answering 429 when exhausted
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback for `podx auth login`.
// It validates the state parameter (CSRF protection), exchanges the authorization code for a token record,
// and sends the result through a channel. It only processes one callback to prevent replay attacks.
//
// When the user logs in from the terminal, a temporary [Server] starts on the configured loopback redirect URI,
// handles the callback, and shuts down after receiving the token.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
