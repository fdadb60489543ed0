// Package sanitizer cleans identity fields copied from third-party
// profiles before they reach the application.
//
// NormalizeDisplayName and NormalizeProfileEmail are the entry points used
// by the broker; the smaller helpers they are built from are exported for
// callers that store other provider text.
package sanitizer
