package handlers

import (
	"context"
	"net/http"
	"time"

	"exam-portal/http/response"
)

// Probe reports whether a dependency is reachable.
type Probe func(ctx context.Context) bool

// Health reports database and broker reachability
// GET /healthz
func Health(database, kafka Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		dbUp := database != nil && database(ctx)
		kafkaState := "disabled"
		if kafka != nil {
			kafkaState = "down"
			if kafka(ctx) {
				kafkaState = "up"
			}
		}

		status := http.StatusOK
		if !dbUp {
			status = http.StatusServiceUnavailable
		}
		fields := map[string]interface{}{
			"db":    map[bool]string{true: "up", false: "down"}[dbUp],
			"kafka": kafkaState,
		}
		if status != http.StatusOK {
			response.Fail(w, status, "unhealthy", fields)
			return
		}
		response.OK(w, status, fields)
	}
}
