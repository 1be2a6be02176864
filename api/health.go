package api

import (
	"net/http"
	"time"
)

var startedAt = time.Now()

func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(startedAt).Seconds()),
	})
}
