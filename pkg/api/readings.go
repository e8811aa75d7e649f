package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sguter90/soilmaestro/pkg/models"
)

// IngestResponse is the body returned by POST /api/sensor-data
type IngestResponse struct {
	Message string          `json:"message"`
	Stored  bool            `json:"stored"`
	Reading *models.Reading `json:"reading,omitempty"`
}

// PostReading submits a reading. Stored reports whether the server kept it
// (201) or skipped it as insignificant (200).
func (c *Client) PostReading(ctx context.Context, input models.ReadingInput) (*IngestResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/sensor-data", input)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out IngestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	out.Stored = resp.StatusCode == http.StatusCreated
	return &out, nil
}

// ListReadings returns one page of readings, newest first
func (c *Client) ListReadings(ctx context.Context, page, limit int) (*models.ReadingsResponse, error) {
	params := url.Values{}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	path := "/api/sensor-data"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var out models.ReadingsResponse
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Latest returns the most recent reading overall
func (c *Client) Latest(ctx context.Context) (*models.Reading, error) {
	var r models.Reading
	if err := c.getJSON(ctx, "/api/sensor-data/latest", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestForUser returns the most recent reading of a user
func (c *Client) LatestForUser(ctx context.Context, userID string) (*models.Reading, error) {
	var r models.Reading
	if err := c.getJSON(ctx, "/api/sensor-data/user/"+url.PathEscape(userID), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// FieldCurrent returns the latest value of one field
func (c *Client) FieldCurrent(ctx context.Context, field string) (*models.FieldSnapshot, error) {
	var snap models.FieldSnapshot
	if err := c.getJSON(ctx, "/api/sensor-data/"+url.PathEscape(field)+"/current", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// FieldWindow returns the values of one field for a window selector such as
// "day", "month/week/2" or "year/mar"
func (c *Client) FieldWindow(ctx context.Context, field, window string) ([]models.FieldValue, error) {
	var values []models.FieldValue
	if err := c.getJSON(ctx, "/api/sensor-data/"+url.PathEscape(field)+"/"+window, &values); err != nil {
		return nil, err
	}
	return values, nil
}
