package health

import (
	"encoding/json"
	"net/http"
)

// Register mounts /health and /health/detailed on mux.
func Register(mux *http.ServeMux, monitor *Monitor) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status := Aggregate(monitor.CheckHealth(r.Context()))

		w.Header().Set("Content-Type", "application/json")
		if status == StatusCritical {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": string(status)})
	})

	mux.HandleFunc("GET /health/detailed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(monitor.Report(r.Context()))
	})
}
