package monitor

import (
	"encoding/json"
	"net/http"
)

// HealthStatus is the JSON body returned by /health.
type HealthStatus struct {
	Status string `json:"status"`
	Repo   string `json:"repo"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(HealthStatus{
		Status: "ok",
		Repo:   s.repoName,
	})
}
