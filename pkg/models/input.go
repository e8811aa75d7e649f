package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/guregu/null/v5"
)

// Number is a loosely typed JSON number. Devices in the field send both
// 23.5 and "23.5"; anything that does not parse is kept as invalid so the
// caller can report it against the right field.
type Number struct {
	value   float64
	present bool
	invalid string
}

// NewNumber returns a present Number holding f
func NewNumber(f float64) Number {
	return Number{value: f, present: true}
}

// UnmarshalJSON never fails; invalid input is recorded and reported by Float
func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}

	n.present = true
	raw := string(b)
	if b[0] == '"' {
		s, err := strconv.Unquote(raw)
		if err != nil {
			n.invalid = raw
			return nil
		}
		raw = strings.TrimSpace(s)
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		n.invalid = string(b)
		return nil
	}

	n.value = f
	return nil
}

// MarshalJSON writes the number, or null when absent
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.present || n.invalid != "" {
		return []byte("null"), nil
	}
	return json.Marshal(n.value)
}

// Present reports whether the field was supplied at all
func (n Number) Present() bool {
	return n.present
}

// Float returns the finite value of the field or a ValidationError
func (n Number) Float(field string) (float64, error) {
	if !n.present {
		return 0, &ValidationError{Field: field, Message: "is required"}
	}
	if n.invalid != "" {
		return 0, &ValidationError{Field: field, Message: "must be a finite number, got " + n.invalid}
	}
	return n.value, nil
}

// Optional converts an optional field to a null.Float, unset when absent
func (n Number) Optional(field string) (null.Float, error) {
	if !n.present {
		return null.Float{}, nil
	}
	f, err := n.Float(field)
	if err != nil {
		return null.Float{}, err
	}
	return null.FloatFrom(f), nil
}

// UserKey accepts a user id sent either as a string or as a bare number
// (phone numbers are common device identifiers).
type UserKey string

func (k *UserKey) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		*k = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*k = UserKey(strings.TrimSpace(s))
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return &ValidationError{Field: "userId", Message: "must be a string"}
	}
	*k = UserKey(string(b))
	return nil
}

// ReadingInput is the typed body of an ingest request
type ReadingInput struct {
	UserID       UserKey `json:"userId"`
	SoilMoisture Number  `json:"soilmoisture"`
	Temperature  Number  `json:"temperature"`
	Humidity     Number  `json:"humidity"`
	Latitude     Number  `json:"latitude"`
	Longitude    Number  `json:"longitude"`
}

// ToReading validates the input and converts it to an unsaved Reading. When
// userId is missing, anonymousID is used if non-empty; otherwise the input is
// rejected.
func (in ReadingInput) ToReading(anonymousID string) (Reading, error) {
	var r Reading
	var err error

	if r.SoilMoisture, err = in.SoilMoisture.Float("soilmoisture"); err != nil {
		return Reading{}, err
	}
	if r.Temperature, err = in.Temperature.Float("temperature"); err != nil {
		return Reading{}, err
	}
	if r.Humidity, err = in.Humidity.Float("humidity"); err != nil {
		return Reading{}, err
	}
	if r.Latitude, err = in.Latitude.Optional("latitude"); err != nil {
		return Reading{}, err
	}
	if r.Longitude, err = in.Longitude.Optional("longitude"); err != nil {
		return Reading{}, err
	}

	r.UserID = strings.TrimSpace(string(in.UserID))
	if r.UserID == "" {
		if anonymousID == "" {
			return Reading{}, &ValidationError{Field: "userId", Message: "is required"}
		}
		r.UserID = anonymousID
	}

	return r, nil
}
