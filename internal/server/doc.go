// Package server provides the local HTTP surface used during login: routing, the popup
// OAuth callback and the redirect-capture page.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns internally.
//
// # Popup Login
//
// The opener creates a [LoginChannel] before the browser is pointed at the provider. The provider
// redirects the popup to /callback, where [PopupHandler] validates the state parameter (CSRF
// protection), exchanges the authorization code, calls exactly one of the [LoginCallbacks]
// methods, and renders a page that closes itself.
//
// Only one callback is processed per handler to prevent replay.
//
// # Redirect Capture
//
// [CaptureHandler] serves a page at / whose script posts location.search and location.hash to
// /capture. Implicit-grant tokens carried by the redirect are persisted and, once the endpoint
// reports success, the page strips the address with history.replaceState.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
