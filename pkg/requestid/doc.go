// Package requestid correlates log records and traces belonging to one
// HTTP request.
//
// Middleware reuses a valid client-supplied X-Request-ID header (up to 128
// characters from [A-Za-z0-9_-]) or generates a UUIDv7. The ID is echoed in
// the response, stored in the request context (FromContext) and set as the
// http.request_id attribute of the active OpenTelemetry span.
//
// LoggerExtractor plugs the ID into the logger package:
//
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
//	http.ListenAndServe(":8080", requestid.Middleware(mux))
package requestid
