package ingest

import (
	"fmt"
	"math"
	"strings"

	"github.com/sguter90/soilmaestro/pkg/models"
)

// Decision is the outcome of the change-significance filter
type Decision struct {
	Store  bool
	Record models.Reading
	Reason string
}

// Validate checks a candidate reading before it reaches Decide
func Validate(candidate models.Reading) error {
	if strings.TrimSpace(candidate.UserID) == "" {
		return &models.ValidationError{Field: "userId", Message: "is required"}
	}

	values := []struct {
		field string
		value float64
	}{
		{"soilmoisture", candidate.SoilMoisture},
		{"temperature", candidate.Temperature},
		{"humidity", candidate.Humidity},
	}
	for _, v := range values {
		if math.IsNaN(v.value) || math.IsInf(v.value, 0) {
			return &models.ValidationError{Field: v.field, Message: "must be a finite number"}
		}
	}

	return nil
}

// thresholdTolerance absorbs float rounding so that decimal readings whose
// difference equals the threshold, such as 50.1 and 50.4 with 0.3, count as
// significant
const thresholdTolerance = 1e-9

func meetsThreshold(delta, threshold float64) bool {
	return delta >= threshold || threshold-delta <= thresholdTolerance*math.Max(1, threshold)
}

// Decide reports whether candidate differs enough from last to be stored.
// A nil last means the user has no stored reading yet. The boundary is
// inclusive: a delta equal to the threshold is significant.
func Decide(candidate models.Reading, last *models.Reading, thresholds models.ThresholdConfig) Decision {
	if last == nil {
		return Decision{Store: true, Record: candidate, Reason: "first reading for user"}
	}

	deltas := []struct {
		field     models.Field
		delta     float64
		threshold float64
	}{
		{models.FieldSoilMoisture, math.Abs(candidate.SoilMoisture - last.SoilMoisture), thresholds.SoilThreshold},
		{models.FieldTemperature, math.Abs(candidate.Temperature - last.Temperature), thresholds.TempThreshold},
		{models.FieldHumidity, math.Abs(candidate.Humidity - last.Humidity), thresholds.HumThreshold},
	}

	for _, d := range deltas {
		if meetsThreshold(d.delta, d.threshold) {
			return Decision{
				Store:  true,
				Record: candidate,
				Reason: fmt.Sprintf("%s changed by %g (threshold %g)", d.field, d.delta, d.threshold),
			}
		}
	}

	return Decision{Store: false, Reason: "no significant change"}
}
