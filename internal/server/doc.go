// Package server hosts the short-lived HTTP listener behind `fanlist auth login`.
//
// # Routing
//
// [BasicRouter] is a thin [http.ServeMux] wrapper that rejects unexpected
// methods with 405 and applies [Middleware] so the first one added is the
// outermost. [RequestLogger] logs each request at debug level and [Recoverer]
// turns a handler panic into a 500.
//
// # Login callback
//
// [OAuthHandler] receives the redirect of the PKCE authorization code flow.
// A wrong state is rejected, a denied consent is reported with the provider's
// error code, and a code is traded for a credential through an [Exchanger].
// Only the first callback is processed; the outcome arrives on [OAuthHandler.Result].
//
// [Listen] binds the redirect URI's address before the browser is opened, so
// the redirect cannot arrive ahead of the listener.
package server
