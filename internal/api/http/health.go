package http

import (
	"net/http"

	"device-loan-backend/internal/resilience"
)

type healthBody struct {
	Status   string                       `json:"status"`
	Breakers []resilience.BreakerSnapshot `json:"breakers"`
}

// Health reports "degraded" while any breaker is open. The endpoint answers
// 200 either way so the process is not restarted over a downstream outage.
func Health(breakers *resilience.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := healthBody{Status: "ok", Breakers: breakers.Snapshots()}
		for _, b := range body.Breakers {
			if b.State == resilience.StateOpen {
				body.Status = "degraded"
				break
			}
		}
		writeJSON(w, r, http.StatusOK, body)
	}
}
