package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v5"
)

// Reading represents one stored sensor sample for a user/device
type Reading struct {
	ID           uuid.UUID  `json:"id"`
	UserID       string     `json:"userId"`
	SoilMoisture float64    `json:"soilmoisture"`
	Temperature  float64    `json:"temperature"`
	Humidity     float64    `json:"humidity"`
	Latitude     null.Float `json:"latitude"`
	Longitude    null.Float `json:"longitude"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Field identifies one measured value of a reading
type Field string

const (
	FieldSoilMoisture Field = "soilmoisture"
	FieldTemperature  Field = "temperature"
	FieldHumidity     Field = "humidity"
)

// ParseField maps a path segment to a Field. "temp" is accepted as an alias
// for temperature.
func ParseField(s string) (Field, error) {
	switch s {
	case "soilmoisture":
		return FieldSoilMoisture, nil
	case "temp", "temperature":
		return FieldTemperature, nil
	case "humidity":
		return FieldHumidity, nil
	}
	return "", &ValidationError{Field: "field", Message: fmt.Sprintf("unknown field %q (valid: soilmoisture, temp, humidity)", s)}
}

// Column returns the storage column/attribute name of the field
func (f Field) Column() string {
	return string(f)
}

// Value extracts the field's value from a reading
func (f Field) Value(r Reading) float64 {
	switch f {
	case FieldSoilMoisture:
		return r.SoilMoisture
	case FieldTemperature:
		return r.Temperature
	default:
		return r.Humidity
	}
}

// FieldValue is a single field sample used by range queries
type FieldValue struct {
	Value     float64   `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}

// FieldSnapshot is the latest value of a single field
type FieldSnapshot struct {
	Field     Field     `json:"field"`
	UserID    string    `json:"userId"`
	Value     float64   `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	DefaultReadingLimit = 100
	MaxReadingLimit     = 1000
)

// ReadingQueryParams holds the pagination parameters for listing readings
type ReadingQueryParams struct {
	UserID string
	Page   int
	Limit  int
}

// Validate checks if the query parameters are valid
func (p *ReadingQueryParams) Validate() error {
	if p.Limit < 1 || p.Limit > MaxReadingLimit {
		return &ValidationError{Field: "limit", Message: fmt.Sprintf("limit must be between 1 and %d", MaxReadingLimit)}
	}

	if p.Page < 1 {
		return &ValidationError{Field: "page", Message: "page must be greater than 0"}
	}

	return nil
}

// Offset returns the number of rows skipped before the current page
func (p *ReadingQueryParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// ReadingsResponse is the paginated envelope returned for reading lists
type ReadingsResponse struct {
	Data       []Reading `json:"data"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	TotalPages int       `json:"total_pages"`
	Limit      int       `json:"limit"`
	HasMore    bool      `json:"has_more"`
}

// NewReadingsResponse builds the envelope and derives the page counters
func NewReadingsResponse(data []Reading, total int, params ReadingQueryParams) *ReadingsResponse {
	if data == nil {
		data = []Reading{}
	}

	totalPages := (total + params.Limit - 1) / params.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	return &ReadingsResponse{
		Data:       data,
		Total:      total,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: totalPages,
		HasMore:    params.Page < totalPages,
	}
}
