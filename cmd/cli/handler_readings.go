package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sguter90/soilmaestro/pkg/models"
	"github.com/sguter90/soilmaestro/pkg/period"
)

const maxBodyBytes = 1 << 20

// postReadingHandler ingests one reading. Readings that do not differ
// significantly from the user's previous one are acknowledged with 200 but
// not stored.
func (rm *RouteManager) postReadingHandler(w http.ResponseWriter, r *http.Request) {
	var input models.ReadingInput
	if err := decodeBody(w, r, &input); err != nil {
		rm.handleError(w, r, err, "Failed to save data")
		return
	}

	result, err := rm.ingest.Ingest(r.Context(), input)
	if err != nil {
		rm.handleError(w, r, err, "Failed to save data")
		return
	}

	if !result.Stored {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message": "Data not saved: no significant change",
			"stored":  false,
			"reason":  result.Reason,
		})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Data saved successfully",
		"stored":  true,
		"reading": result.Reading,
	})
}

// decodeBody reads a JSON request body into v. Malformed bodies are reported
// as validation errors.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			return ve
		}
		if errors.Is(err, io.EOF) {
			return &models.ValidationError{Field: "body", Message: "request body is empty"}
		}
		return &models.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}

// getReadingsHandler returns a page of readings, newest first
// Query params:
//   - page: 1-based page number (default: 1)
//   - limit: page size (default: 100, max: 1000)
//   - userId: only readings of this user
func (rm *RouteManager) getReadingsHandler(w http.ResponseWriter, r *http.Request) {
	params, err := parseReadingQueryParams(r)
	if err != nil {
		rm.handleError(w, r, err, "Failed to fetch data")
		return
	}

	result, err := rm.readings.GetReadings(r.Context(), params)
	if err != nil {
		rm.handleError(w, r, err, "Failed to fetch data")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// parseReadingQueryParams extracts and validates the pagination parameters
func parseReadingQueryParams(r *http.Request) (models.ReadingQueryParams, error) {
	q := r.URL.Query()
	params := models.ReadingQueryParams{
		UserID: q.Get("userId"),
		Page:   1,
		Limit:  models.DefaultReadingLimit,
	}

	if s := q.Get("page"); s != "" {
		page, err := strconv.Atoi(s)
		if err != nil {
			return params, &models.ValidationError{Field: "page", Message: "must be an integer"}
		}
		params.Page = page
	}

	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil {
			return params, &models.ValidationError{Field: "limit", Message: "must be an integer"}
		}
		params.Limit = limit
	}

	return params, params.Validate()
}

// latestHandler returns the most recent reading of any user
func (rm *RouteManager) latestHandler(w http.ResponseWriter, r *http.Request) {
	reading, err := rm.readings.LatestReading(r.Context())
	if err != nil {
		rm.handleError(w, r, err, "Failed to fetch latest data")
		return
	}

	writeJSON(w, http.StatusOK, reading)
}

// latestForUserHandler returns the most recent reading of one user
func (rm *RouteManager) latestForUserHandler(w http.ResponseWriter, r *http.Request) {
	reading, err := rm.readings.LatestReadingForUser(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		rm.handleError(w, r, err, "Failed to fetch latest data")
		return
	}

	writeJSON(w, http.StatusOK, reading)
}

// fieldCurrentHandler returns the latest value of a single field. With
// ?userId= the lookup is limited to that user.
func (rm *RouteManager) fieldCurrentHandler(w http.ResponseWriter, r *http.Request) {
	field, err := models.ParseField(mux.Vars(r)["field"])
	if err != nil {
		rm.handleError(w, r, err, "Failed to fetch latest data")
		return
	}

	var reading *models.Reading
	if userID := r.URL.Query().Get("userId"); userID != "" {
		reading, err = rm.readings.LatestReadingForUser(r.Context(), userID)
	} else {
		reading, err = rm.readings.LatestReading(r.Context())
	}
	if err != nil {
		rm.handleError(w, r, err, "Failed to fetch latest data")
		return
	}

	writeJSON(w, http.StatusOK, models.FieldSnapshot{
		Field:     field,
		UserID:    reading.UserID,
		Value:     field.Value(*reading),
		CreatedAt: reading.CreatedAt,
	})
}

// fieldRollingHandler returns a field over the last day, week, month or year
func (rm *RouteManager) fieldRollingHandler(w http.ResponseWriter, r *http.Request) {
	window, err := period.Rolling(rm.now(), mux.Vars(r)["period"])
	rm.writeFieldRange(w, r, window, err)
}

// fieldMonthWeekHandler returns a field for week 1-5 of the current month
func (rm *RouteManager) fieldMonthWeekHandler(w http.ResponseWriter, r *http.Request) {
	week, err := strconv.Atoi(mux.Vars(r)["weekNumber"])
	if err != nil {
		rm.handleError(w, r, &models.ValidationError{Field: "weekNumber", Message: "must be between 1 and 5"}, "Failed to fetch data")
		return
	}

	window, err := period.MonthWeek(rm.now(), week, rm.location)
	rm.writeFieldRange(w, r, window, err)
}

// fieldYearMonthHandler returns a field for a named month of the current year
func (rm *RouteManager) fieldYearMonthHandler(w http.ResponseWriter, r *http.Request) {
	window, err := period.YearMonth(rm.now(), mux.Vars(r)["month"], rm.location)
	rm.writeFieldRange(w, r, window, err)
}

// writeFieldRange queries the field values inside window. windowErr is the
// error of computing the window, if any.
func (rm *RouteManager) writeFieldRange(w http.ResponseWriter, r *http.Request, window period.Window, windowErr error) {
	if windowErr != nil {
		rm.handleError(w, r, windowErr, "Failed to fetch data")
		return
	}

	field, err := models.ParseField(mux.Vars(r)["field"])
	if err != nil {
		rm.handleError(w, r, err, "Failed to fetch data")
		return
	}

	values, err := rm.readings.FieldRange(r.Context(), field, window.Start, window.End)
	if err != nil {
		rm.handleError(w, r, err, "Failed to fetch data")
		return
	}
	if values == nil {
		values = []models.FieldValue{}
	}

	writeJSON(w, http.StatusOK, values)
}
