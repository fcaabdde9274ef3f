package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/cairnhq/cairn/pkg/contextkeys"
)

// RequestIDHeader is echoed back to clients for correlation
const RequestIDHeader = "X-Request-ID"

// RequestID assigns each request a correlation ID, preferring one the
// client already sent.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		ctx := contextkeys.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
