package handler

import (
	"net/http"

	"cortex/internal/httputil"
)

// HealthCheck answers liveness checks
// GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
