package handlers

import (
	"net/http"

	"github.com/theblitlabs/sandbox-provisioner/internal/monitoring/health"
)

type HealthHandler struct {
	checker *health.HealthChecker
}

func NewHealthHandler(checker *health.HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

type healthResponse struct {
	Status     health.Status                      `json:"status"`
	Components map[string]*health.ComponentHealth `json:"components"`
}

// Health reports the last known component states. Only an ERROR component
// makes the endpoint unavailable.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := h.checker.Overall()
	code := http.StatusOK
	if status == health.StatusError {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, healthResponse{
		Status:     status,
		Components: h.checker.GetAllHealth(),
	})
}
