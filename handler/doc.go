// Package handler provides small building blocks for HTTP endpoints that
// return values instead of writing to the response directly.
//
// A HandlerFunc receives a Context and returns a Response. Wrap turns it
// into an http.HandlerFunc, renders the response, and routes render
// failures to an ErrorHandler:
//
//	func health(ctx handler.Context) handler.Response {
//		return handler.JSON(map[string]string{"status": "ok"})
//	}
//
//	mux.Handle("/health", handler.Wrap(health))
//
// # Responses
//
//   - JSON wraps a value in {"data": ...}.
//   - JSONError renders {"error": {"code", "message"}}; HTTPError values set
//     the status code and code, other errors become a generic 500.
//   - Redirect and RedirectWithCode issue HTTP redirects.
//   - ResponseFunc adapts a plain function.
//
// # Context values
//
// NewContextKey, ContextValue and ContextValueOK give typed access to
// request-scoped values without key collisions.
package handler
