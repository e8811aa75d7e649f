package main

import (
	"context"
	"net/http"
	"time"

	"github.com/sguter90/soilmaestro/pkg/database"
)

// healthReporter is implemented by backends with a background health checker
type healthReporter interface {
	HealthStatus() database.HealthStatus
}

// healthHandler returns server health status including the storage backend
func (rm *RouteManager) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := map[string]string{
		"status":    "ok",
		"database":  "connected",
		"timestamp": rm.now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if err := rm.readings.Ping(ctx); err != nil {
		rm.logger.Warn("Health check failed", "error", err)
		resp["status"], resp["database"], resp["error"] = "degraded", "disconnected", err.Error()
		code = http.StatusServiceUnavailable
	}

	if reporter, ok := rm.readings.(healthReporter); ok {
		status := reporter.HealthStatus()
		if !status.LastCheck.IsZero() {
			resp["lastCheck"] = status.LastCheck.UTC().Format(time.RFC3339)
		}
		if status.Error != "" {
			resp["error"] = status.Error
		}
	}

	writeJSON(w, code, resp)
}
