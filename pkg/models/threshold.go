package models

import (
	"math"
	"time"
)

const (
	DefaultSoilThreshold = 3
	DefaultTempThreshold = 3
	DefaultHumThreshold  = 3
)

// ThresholdConfig holds the minimum per-field change that makes a new
// reading worth storing
type ThresholdConfig struct {
	SoilThreshold float64   `json:"soilThreshold"`
	TempThreshold float64   `json:"tempThreshold"`
	HumThreshold  float64   `json:"humThreshold"`
	Version       int64     `json:"version"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// DefaultThresholds returns the built-in thresholds
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		SoilThreshold: DefaultSoilThreshold,
		TempThreshold: DefaultTempThreshold,
		HumThreshold:  DefaultHumThreshold,
	}
}

// Validate checks that every threshold is a non-negative finite number
func (c ThresholdConfig) Validate() error {
	checks := []struct {
		field string
		value float64
	}{
		{"soilThreshold", c.SoilThreshold},
		{"tempThreshold", c.TempThreshold},
		{"humThreshold", c.HumThreshold},
	}
	for _, check := range checks {
		if math.IsNaN(check.value) || math.IsInf(check.value, 0) || check.value < 0 {
			return &ValidationError{Field: check.field, Message: "must be a non-negative number"}
		}
	}
	return nil
}

// ThresholdInput is the body of a threshold update; absent fields keep their
// current value
type ThresholdInput struct {
	SoilThreshold Number `json:"soilThreshold"`
	TempThreshold Number `json:"tempThreshold"`
	HumThreshold  Number `json:"humThreshold"`
}

// Apply merges the input into current and validates the result
func (in ThresholdInput) Apply(current ThresholdConfig) (ThresholdConfig, error) {
	next := current
	fields := []struct {
		name string
		in   Number
		dst  *float64
	}{
		{"soilThreshold", in.SoilThreshold, &next.SoilThreshold},
		{"tempThreshold", in.TempThreshold, &next.TempThreshold},
		{"humThreshold", in.HumThreshold, &next.HumThreshold},
	}
	for _, f := range fields {
		if !f.in.Present() {
			continue
		}
		v, err := f.in.Float(f.name)
		if err != nil {
			return current, err
		}
		*f.dst = v
	}

	if err := next.Validate(); err != nil {
		return current, err
	}
	return next, nil
}
