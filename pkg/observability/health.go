package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"
)

// HealthStatus is the payload of the health endpoint
type HealthStatus struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks,omitempty"`
	CheckedAt time.Time        `json:"checked_at"`
}

// HealthHandler returns a handler reporting process and database health.
// The db may be nil for deployments that want a liveness-only probe.
func HealthHandler(db *sql.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := HealthStatus{
			Status:    "ok",
			Checks:    make(map[string]string),
			CheckedAt: time.Now().UTC(),
		}
		code := http.StatusOK

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				status.Status = "degraded"
				status.Checks["database"] = err.Error()
				code = http.StatusServiceUnavailable
			} else {
				status.Checks["database"] = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(status)
	})
}
