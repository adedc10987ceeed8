package healthcheck

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthHandler serves /healthz responses: OK while refreshes keep landing
// within twice the poll interval.
func HealthHandler(tracker *Tracker, pollInterval time.Duration) http.HandlerFunc {
	return statusHandler(tracker, func() bool {
		return tracker.Healthy(time.Now().UTC(), pollInterval)
	})
}

// ReadyHandler serves /readyz responses: OK once the first refresh completed.
func ReadyHandler(tracker *Tracker) http.HandlerFunc {
	return statusHandler(tracker, tracker.Ready)
}

func statusHandler(tracker *Tracker, ok func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusServiceUnavailable
		if tracker != nil && ok() {
			status = http.StatusOK
		}
		writeJSON(w, status, tracker.Snapshot())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload Snapshot) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
