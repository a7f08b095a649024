package core

import (
	"net/http"
	"time"
)

const version = "1.0.0"

type healthServices struct {
	Database      string `json:"database"`
	MessageBroker string `json:"message_broker"`
	Workers       string `json:"workers"`
}

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Services  healthServices `json:"services"`
	Version   string         `json:"version"`
}

func upDown(up bool) string {
	if up {
		return "up"
	}
	return "down"
}

// handleHealth implements GET /health (spec.md §4.1 and §6): overall
// status is healthy iff both store and broker are up, else degraded. The
// worker pool has no reachability signal the API front-end can observe
// directly, so it is always reported up, matching a process that has
// nothing better to check.
func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	storeUp, brokerUp := a.CheckHealth(r.Context())

	status := "healthy"
	if !storeUp || !brokerUp {
		status = "degraded"
	}

	writeData(w, http.StatusOK, healthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services: healthServices{
			Database:      upDown(storeUp),
			MessageBroker: upDown(brokerUp),
			Workers:       "up",
		},
		Version: version,
	})
}
