package middleware

import (
	"net/http"
	"strconv"

	"github.com/cairnhq/cairn/pkg/contextkeys"
)

// ActorHeader carries the authenticated user ID, set by the gateway in
// front of this service.
const ActorHeader = "X-Cairn-Actor"

// ActorMiddleware resolves the acting user from the request headers
type ActorMiddleware struct {
	optional bool // If true, allow requests without an actor
}

// NewActorMiddleware creates a new actor middleware
func NewActorMiddleware(optional bool) *ActorMiddleware {
	return &ActorMiddleware{optional: optional}
}

// Handler wraps an HTTP handler with actor resolution
func (m *ActorMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(ActorHeader)
		if header == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			unauthorizedResponse(w, "missing actor header")
			return
		}

		actorID, err := strconv.ParseInt(header, 10, 64)
		if err != nil || actorID <= 0 {
			unauthorizedResponse(w, "invalid actor header")
			return
		}

		ctx := contextkeys.WithActor(r.Context(), actorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetActorID extracts the acting user ID from a request
func GetActorID(r *http.Request) (int64, bool) {
	return contextkeys.ActorID(r.Context())
}

func unauthorizedResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
