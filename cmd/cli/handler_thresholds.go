package main

import (
	"net/http"

	"github.com/sguter90/soilmaestro/pkg/models"
)

// getThresholdsHandler returns the active threshold configuration
func (rm *RouteManager) getThresholdsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rm.thresholds.Get())
}

// setThresholdsHandler updates the thresholds supplied in the body. New
// values apply to every ingest decision made after the response.
func (rm *RouteManager) setThresholdsHandler(w http.ResponseWriter, r *http.Request) {
	var input models.ThresholdInput
	if err := decodeBody(w, r, &input); err != nil {
		rm.handleError(w, r, err, "Failed to update thresholds")
		return
	}

	cfg, err := rm.thresholds.Update(r.Context(), input)
	if err != nil {
		rm.handleError(w, r, err, "Failed to update thresholds")
		return
	}

	rm.logger.Info("Thresholds updated",
		"soil", cfg.SoilThreshold, "temp", cfg.TempThreshold, "hum", cfg.HumThreshold, "version", cfg.Version)
	writeJSON(w, http.StatusOK, cfg)
}
