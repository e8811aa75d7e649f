package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sguter90/soilmaestro/pkg/models"
)

// Thresholds returns the active threshold configuration
func (c *Client) Thresholds(ctx context.Context) (*models.ThresholdConfig, error) {
	var cfg models.ThresholdConfig
	if err := c.getJSON(ctx, "/api/threshold", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetThresholds updates the supplied thresholds; absent fields are kept
func (c *Client) SetThresholds(ctx context.Context, input models.ThresholdInput) (*models.ThresholdConfig, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/threshold", input)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var cfg models.ThresholdConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &cfg, nil
}
