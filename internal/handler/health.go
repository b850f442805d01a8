package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Checker reports whether an optional dependency is reachable.
type Checker interface {
	IsHealthy() bool
}

// HealthHandler answers load balancer probes.
type HealthHandler struct {
	checks map[string]Checker
}

// NewHealthHandler reports each non-nil checker under its name.
func NewHealthHandler(checks map[string]Checker) *HealthHandler {
	live := make(map[string]Checker, len(checks))
	for name, c := range checks {
		if c != nil {
			live[name] = c
		}
	}
	return &HealthHandler{checks: live}
}

// Health returns 200 with "ok" while the process is serving.  Degraded
// optional dependencies are listed but do not fail the probe.
func (h *HealthHandler) Health(c echo.Context) error {
	if len(h.checks) == 0 {
		return c.String(http.StatusOK, "ok")
	}
	deps := make(map[string]string, len(h.checks))
	for name, chk := range h.checks {
		deps[name] = "up"
		if !chk.IsHealthy() {
			deps[name] = "down"
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "dependencies": deps})
}
