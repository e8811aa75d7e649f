package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestReadingQueryParams_Validate(t *testing.T) {
	testCases := []struct {
		name        string
		params      ReadingQueryParams
		expectError bool
		errorMsg    string
	}{
		{
			name:        "Valid basic params",
			params:      ReadingQueryParams{Limit: 100, Page: 1},
			expectError: false,
		},
		{
			name:        "Valid max limit",
			params:      ReadingQueryParams{Limit: 1000, Page: 3},
			expectError: false,
		},
		{
			name:        "Invalid limit - too low",
			params:      ReadingQueryParams{Limit: 0, Page: 1},
			expectError: true,
			errorMsg:    "limit must be between 1 and 1000",
		},
		{
			name:        "Invalid limit - too high",
			params:      ReadingQueryParams{Limit: 1001, Page: 1},
			expectError: true,
			errorMsg:    "limit must be between 1 and 1000",
		},
		{
			name:        "Invalid page - zero",
			params:      ReadingQueryParams{Limit: 100, Page: 0},
			expectError: true,
			errorMsg:    "page must be greater than 0",
		},
		{
			name:        "Invalid page - negative",
			params:      ReadingQueryParams{Limit: 100, Page: -1},
			expectError: true,
			errorMsg:    "page must be greater than 0",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.params.Validate()

			if tc.expectError {
				if err == nil {
					t.Fatalf("Expected error but got nil")
				}
				if !IsValidation(err) {
					t.Errorf("Expected ValidationError, got %T", err)
				}
				if !strings.Contains(err.Error(), tc.errorMsg) {
					t.Errorf("Expected error containing '%s', got '%s'", tc.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestReadingQueryParams_Offset(t *testing.T) {
	params := ReadingQueryParams{Page: 3, Limit: 25}
	if got := params.Offset(); got != 50 {
		t.Errorf("Expected offset 50, got %d", got)
	}
}

func TestNewReadingsResponse(t *testing.T) {
	testCases := []struct {
		name       string
		total      int
		page       int
		limit      int
		totalPages int
		hasMore    bool
	}{
		{"Empty result", 0, 1, 10, 1, false},
		{"Single full page", 10, 1, 10, 1, false},
		{"First of three", 25, 1, 10, 3, true},
		{"Last of three", 25, 3, 10, 3, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := NewReadingsResponse(nil, tc.total, ReadingQueryParams{Page: tc.page, Limit: tc.limit})

			if resp.Data == nil {
				t.Error("Expected data to be an empty slice, got nil")
			}
			if resp.TotalPages != tc.totalPages {
				t.Errorf("Expected total_pages=%d, got %d", tc.totalPages, resp.TotalPages)
			}
			if resp.HasMore != tc.hasMore {
				t.Errorf("Expected has_more=%v, got %v", tc.hasMore, resp.HasMore)
			}
		})
	}
}

func TestParseField(t *testing.T) {
	testCases := []struct {
		input    string
		expected Field
		wantErr  bool
	}{
		{"soilmoisture", FieldSoilMoisture, false},
		{"temp", FieldTemperature, false},
		{"temperature", FieldTemperature, false},
		{"humidity", FieldHumidity, false},
		{"pressure", "", true},
		{"", "", true},
	}

	for _, tc := range testCases {
		field, err := ParseField(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseField(%q): expected error", tc.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseField(%q): unexpected error %v", tc.input, err)
		}
		if field != tc.expected {
			t.Errorf("ParseField(%q): expected %s, got %s", tc.input, tc.expected, field)
		}
	}
}

func TestReading_JSONUnsetCoordinates(t *testing.T) {
	r := Reading{UserID: "farmer-1", SoilMoisture: 30, Temperature: 20, Humidity: 50}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Failed to marshal reading: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal reading: %v", err)
	}

	if decoded["latitude"] != nil {
		t.Errorf("Expected latitude to be null, got %v", decoded["latitude"])
	}
	if decoded["longitude"] != nil {
		t.Errorf("Expected longitude to be null, got %v", decoded["longitude"])
	}
}

func decodeInput(t *testing.T, body string) ReadingInput {
	t.Helper()

	var in ReadingInput
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		t.Fatalf("Failed to decode input %s: %v", body, err)
	}
	return in
}

func TestReadingInput_ToReading(t *testing.T) {
	in := decodeInput(t, `{"userId":"farmer-1","soilmoisture":33,"temperature":"20.5","humidity":50,"latitude":12.5}`)

	r, err := in.ToReading("")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if r.UserID != "farmer-1" {
		t.Errorf("Expected userId farmer-1, got %s", r.UserID)
	}
	if r.Temperature != 20.5 {
		t.Errorf("Expected numeric string to be accepted, got %v", r.Temperature)
	}
	if !r.Latitude.Valid || r.Latitude.Float64 != 12.5 {
		t.Errorf("Expected latitude 12.5, got %+v", r.Latitude)
	}
	if r.Longitude.Valid {
		t.Errorf("Expected longitude to be unset, got %+v", r.Longitude)
	}
}

func TestReadingInput_ToReading_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		body  string
		field string
	}{
		{"Non numeric soil moisture", `{"userId":"u","soilmoisture":"wet","temperature":20,"humidity":50}`, "soilmoisture"},
		{"Missing temperature", `{"userId":"u","soilmoisture":30,"humidity":50}`, "temperature"},
		{"Null humidity", `{"userId":"u","soilmoisture":30,"temperature":20,"humidity":null}`, "humidity"},
		{"NaN string", `{"userId":"u","soilmoisture":"NaN","temperature":20,"humidity":50}`, "soilmoisture"},
		{"Infinity string", `{"userId":"u","soilmoisture":30,"temperature":"Inf","humidity":50}`, "temperature"},
		{"Boolean humidity", `{"userId":"u","soilmoisture":30,"temperature":20,"humidity":true}`, "humidity"},
		{"Invalid latitude", `{"userId":"u","soilmoisture":30,"temperature":20,"humidity":50,"latitude":"north"}`, "latitude"},
		{"Missing user", `{"soilmoisture":30,"temperature":20,"humidity":50}`, "userId"},
		{"Blank user", `{"userId":"  ","soilmoisture":30,"temperature":20,"humidity":50}`, "userId"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := decodeInput(t, tc.body)

			_, err := in.ToReading("")
			if err == nil {
				t.Fatal("Expected error but got nil")
			}

			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected ValidationError, got %T", err)
			}
			if ve.Field != tc.field {
				t.Errorf("Expected error for field %s, got %s", tc.field, ve.Field)
			}
		})
	}
}

func TestReadingInput_AnonymousUser(t *testing.T) {
	in := decodeInput(t, `{"soilmoisture":30,"temperature":20,"humidity":50}`)

	r, err := in.ToReading("anonymous")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if r.UserID != "anonymous" {
		t.Errorf("Expected anonymous user id, got %s", r.UserID)
	}
	if r.Latitude.Valid || r.Longitude.Valid {
		t.Error("Expected GPS fields to stay unset")
	}
}

func TestReadingInput_NumericUserID(t *testing.T) {
	in := decodeInput(t, `{"userId":9876543210,"soilmoisture":30,"temperature":20,"humidity":50}`)

	r, err := in.ToReading("")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if r.UserID != "9876543210" {
		t.Errorf("Expected userId 9876543210, got %s", r.UserID)
	}
}

func TestThresholdInput_Apply(t *testing.T) {
	current := DefaultThresholds()

	var in ThresholdInput
	if err := json.Unmarshal([]byte(`{"tempThreshold":1.5}`), &in); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}

	next, err := in.Apply(current)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if next.TempThreshold != 1.5 {
		t.Errorf("Expected tempThreshold 1.5, got %v", next.TempThreshold)
	}
	if next.SoilThreshold != current.SoilThreshold || next.HumThreshold != current.HumThreshold {
		t.Error("Expected absent fields to keep their current value")
	}
}

func TestThresholdInput_Apply_Invalid(t *testing.T) {
	testCases := []string{
		`{"soilThreshold":-1}`,
		`{"humThreshold":"high"}`,
		`{"tempThreshold":"NaN"}`,
	}

	for _, body := range testCases {
		var in ThresholdInput
		if err := json.Unmarshal([]byte(body), &in); err != nil {
			t.Fatalf("Failed to decode %s: %v", body, err)
		}

		current := DefaultThresholds()
		next, err := in.Apply(current)
		if err == nil {
			t.Errorf("Expected error for %s", body)
		}
		if next != current {
			t.Errorf("Expected current thresholds to be returned unchanged for %s", body)
		}
	}
}
