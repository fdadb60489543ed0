package requestid

import (
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	Header      = "X-Request-ID"
	maxIDLength = 128
)

// Middleware attaches a request ID to every request. A valid client
// supplied X-Request-ID is reused; otherwise a time-ordered UUID is
// generated. The ID is echoed in the response header, stored in the
// context and recorded on the active span.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if !isValidRequestID(requestID) {
			requestID = newID()
		}
		w.Header().Set(Header, requestID)
		trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("http.request_id", requestID))
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), requestID)))
	})
}

func newID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.New().String()
}

// isValidRequestID accepts 1 to maxIDLength characters from [A-Za-z0-9_-].
func isValidRequestID(id string) bool {
	if len(id) == 0 || len(id) > maxIDLength {
		return false
	}
	for _, c := range []byte(id) {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
