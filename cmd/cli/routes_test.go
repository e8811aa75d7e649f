package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sguter90/soilmaestro/pkg/database"
	"github.com/sguter90/soilmaestro/pkg/ingest"
	"github.com/sguter90/soilmaestro/pkg/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupRouteManager returns a route manager backed by a migrated in-memory
// sqlite database
func setupRouteManager(t *testing.T) *RouteManager {
	t.Helper()

	dm, err := database.NewDatabaseManager(database.Options{
		Dialect: database.DialectSQLite,
		DSN:     ":memory:",
		Logger:  discardLogger(),
	})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { dm.Close() })

	if err := dm.Init(); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	thresholds := ingest.NewThresholdCell(models.DefaultThresholds(), dm)
	if err := thresholds.Load(t.Context()); err != nil {
		t.Fatalf("Failed to load thresholds: %v", err)
	}

	service := ingest.NewService(dm, thresholds, ingest.WithLogger(discardLogger()))
	rm := NewRouteManager(dm, service, thresholds, RouteOptions{
		AllowedOrigins: []string{"http://dashboard.local"},
		Location:       time.UTC,
		Logger:         discardLogger(),
	})
	rm.Setup()
	return rm
}

func doRequest(t *testing.T, rm *RouteManager, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	rm.Router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func TestPostReadingStoresAndSkips(t *testing.T) {
	rm := setupRouteManager(t)

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:           "first reading is stored",
			body:           `{"userId":"u1","soilmoisture":40,"temperature":20,"humidity":50}`,
			expectedStatus: http.StatusCreated,
			expectedMsg:    "Data saved successfully",
		},
		{
			name:           "small change is skipped",
			body:           `{"userId":"u1","soilmoisture":41,"temperature":21,"humidity":51}`,
			expectedStatus: http.StatusOK,
			expectedMsg:    "Data not saved: no significant change",
		},
		{
			name:           "significant soil change is stored",
			body:           `{"userId":"u1","soilmoisture":"45","temperature":20,"humidity":50}`,
			expectedStatus: http.StatusCreated,
			expectedMsg:    "Data saved successfully",
		},
		{
			name:           "other user has its own history",
			body:           `{"userId":"u2","soilmoisture":45,"temperature":20,"humidity":50}`,
			expectedStatus: http.StatusCreated,
			expectedMsg:    "Data saved successfully",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, rm, http.MethodPost, "/api/sensor-data", tt.body)
			if rec.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}

			var body map[string]interface{}
			decodeJSON(t, rec, &body)
			if body["message"] != tt.expectedMsg {
				t.Errorf("Expected message %q, got %v", tt.expectedMsg, body["message"])
			}
		})
	}

	rec := doRequest(t, rm, http.MethodGet, "/api/sensor-data", "")
	var list models.ReadingsResponse
	decodeJSON(t, rec, &list)
	if list.Total != 3 {
		t.Errorf("Expected 3 stored readings, got %d", list.Total)
	}
}

func TestPostReadingValidation(t *testing.T) {
	rm := setupRouteManager(t)

	tests := []struct {
		name string
		body string
	}{
		{"non numeric soil moisture", `{"userId":"u1","soilmoisture":"abc","temperature":20,"humidity":50}`},
		{"missing humidity", `{"userId":"u1","soilmoisture":40,"temperature":20}`},
		{"missing user", `{"soilmoisture":40,"temperature":20,"humidity":50}`},
		{"malformed json", `{"userId":`},
		{"empty body", ``},
		{"object user id", `{"userId":{"a":1},"soilmoisture":40,"temperature":20,"humidity":50}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, rm, http.MethodPost, "/api/sensor-data", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("Expected status 400, got %d (%s)", rec.Code, rec.Body.String())
			}

			var body map[string]string
			decodeJSON(t, rec, &body)
			if body["error"] == "" {
				t.Error("Expected error message in response body")
			}
		})
	}

	rec := doRequest(t, rm, http.MethodGet, "/api/sensor-data", "")
	var list models.ReadingsResponse
	decodeJSON(t, rec, &list)
	if list.Total != 0 {
		t.Errorf("Expected invalid readings not to be stored, got %d", list.Total)
	}
}

func TestLatestEndpoints(t *testing.T) {
	rm := setupRouteManager(t)

	rec := doRequest(t, rm, http.MethodGet, "/api/sensor-data/latest", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404 on empty store, got %d", rec.Code)
	}
	var errBody map[string]string
	decodeJSON(t, rec, &errBody)
	if errBody["error"] != "No sensor data found" {
		t.Errorf("Expected not found message, got %q", errBody["error"])
	}

	doRequest(t, rm, http.MethodPost, "/api/sensor-data", `{"userId":"u1","soilmoisture":40,"temperature":20,"humidity":50}`)
	doRequest(t, rm, http.MethodPost, "/api/sensor-data", `{"userId":"u2","soilmoisture":10,"temperature":30,"humidity":70}`)

	rec = doRequest(t, rm, http.MethodGet, "/api/sensor-data/latest", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var latest models.Reading
	decodeJSON(t, rec, &latest)
	if latest.UserID != "u2" {
		t.Errorf("Expected latest reading of u2, got %s", latest.UserID)
	}

	rec = doRequest(t, rm, http.MethodGet, "/api/sensor-data/user/u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var forUser models.Reading
	decodeJSON(t, rec, &forUser)
	if forUser.UserID != "u1" || forUser.SoilMoisture != 40 {
		t.Errorf("Expected u1 reading with soil 40, got %s/%g", forUser.UserID, forUser.SoilMoisture)
	}

	rec = doRequest(t, rm, http.MethodGet, "/api/sensor-data/user/nobody", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown user, got %d", rec.Code)
	}
}

func TestGetReadingsPagination(t *testing.T) {
	rm := setupRouteManager(t)

	for i := 0; i < 5; i++ {
		body := `{"userId":"u` + string(rune('a'+i)) + `","soilmoisture":40,"temperature":20,"humidity":50}`
		if rec := doRequest(t, rm, http.MethodPost, "/api/sensor-data", body); rec.Code != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d", rec.Code)
		}
	}

	tests := []struct {
		query          string
		expectedStatus int
		expectedLen    int
		expectedMore   bool
	}{
		{"?page=1&limit=2", http.StatusOK, 2, true},
		{"?page=3&limit=2", http.StatusOK, 1, false},
		{"?page=4&limit=2", http.StatusOK, 0, false},
		{"?userId=ub", http.StatusOK, 1, false},
		{"?page=0", http.StatusBadRequest, 0, false},
		{"?limit=1001", http.StatusBadRequest, 0, false},
		{"?limit=abc", http.StatusBadRequest, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := doRequest(t, rm, http.MethodGet, "/api/sensor-data"+tt.query, "")
			if rec.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var resp models.ReadingsResponse
			decodeJSON(t, rec, &resp)
			if len(resp.Data) != tt.expectedLen {
				t.Errorf("Expected %d readings, got %d", tt.expectedLen, len(resp.Data))
			}
			if resp.HasMore != tt.expectedMore {
				t.Errorf("Expected has_more %v, got %v", tt.expectedMore, resp.HasMore)
			}
		})
	}
}

func TestFieldEndpoints(t *testing.T) {
	rm := setupRouteManager(t)

	rec := doRequest(t, rm, http.MethodGet, "/api/sensor-data/temp/current", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404 on empty store, got %d", rec.Code)
	}

	doRequest(t, rm, http.MethodPost, "/api/sensor-data", `{"userId":"u1","soilmoisture":40,"temperature":20,"humidity":50}`)
	doRequest(t, rm, http.MethodPost, "/api/sensor-data", `{"userId":"u1","soilmoisture":30,"temperature":25,"humidity":60}`)

	rec = doRequest(t, rm, http.MethodGet, "/api/sensor-data/temp/current", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var snap models.FieldSnapshot
	decodeJSON(t, rec, &snap)
	if snap.Field != models.FieldTemperature || snap.Value != 25 {
		t.Errorf("Expected temperature 25, got %s %g", snap.Field, snap.Value)
	}

	month := strings.ToLower(time.Now().UTC().Format("Jan"))

	tests := []struct {
		path           string
		expectedStatus int
		expectedLen    int
	}{
		{"/api/sensor-data/soilmoisture/day", http.StatusOK, 2},
		{"/api/sensor-data/humidity/week", http.StatusOK, 2},
		{"/api/sensor-data/temperature/year", http.StatusOK, 2},
		{"/api/sensor-data/soilmoisture/year/" + month, http.StatusOK, 2},
		{"/api/sensor-data/soilmoisture/year/" + strings.ToUpper(month), http.StatusOK, 2},
		{"/api/sensor-data/soilmoisture/year/foo", http.StatusBadRequest, 0},
		{"/api/sensor-data/soilmoisture/month/week/0", http.StatusBadRequest, 0},
		{"/api/sensor-data/soilmoisture/month/week/6", http.StatusBadRequest, 0},
		{"/api/sensor-data/soilmoisture/month/week/x", http.StatusBadRequest, 0},
		{"/api/sensor-data/pressure/current", http.StatusNotFound, 0},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := doRequest(t, rm, http.MethodGet, tt.path, "")
			if rec.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var values []models.FieldValue
			decodeJSON(t, rec, &values)
			if len(values) != tt.expectedLen {
				t.Fatalf("Expected %d values, got %d", tt.expectedLen, len(values))
			}
			if values[0].CreatedAt.After(values[1].CreatedAt) {
				t.Error("Expected values in ascending time order")
			}
		})
	}
}

func TestFieldMonthWeekReturnsCurrentWeek(t *testing.T) {
	rm := setupRouteManager(t)
	doRequest(t, rm, http.MethodPost, "/api/sensor-data", `{"userId":"u1","soilmoisture":40,"temperature":20,"humidity":50}`)

	week := (time.Now().UTC().Day()-1)/7 + 1
	path := "/api/sensor-data/humidity/month/week/" + string(rune('0'+week))

	rec := doRequest(t, rm, http.MethodGet, path, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var values []models.FieldValue
	decodeJSON(t, rec, &values)
	if len(values) != 1 || values[0].Value != 50 {
		t.Errorf("Expected one humidity value of 50, got %+v", values)
	}
}

func TestThresholdEndpoints(t *testing.T) {
	rm := setupRouteManager(t)

	rec := doRequest(t, rm, http.MethodGet, "/api/threshold", "")
	var cfg models.ThresholdConfig
	decodeJSON(t, rec, &cfg)
	if cfg.SoilThreshold != models.DefaultSoilThreshold || cfg.Version != 1 {
		t.Fatalf("Expected default thresholds at version 1, got %+v", cfg)
	}

	rec = doRequest(t, rm, http.MethodPost, "/api/threshold", `{"soilThreshold":10}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	decodeJSON(t, rec, &cfg)
	if cfg.SoilThreshold != 10 || cfg.TempThreshold != models.DefaultTempThreshold || cfg.Version != 2 {
		t.Errorf("Expected soil 10, default temp, version 2, got %+v", cfg)
	}

	rec = doRequest(t, rm, http.MethodPost, "/api/threshold", `{"humThreshold":-1}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for negative threshold, got %d", rec.Code)
	}

	// the new soil threshold applies to the next decision
	doRequest(t, rm, http.MethodPost, "/api/sensor-data", `{"userId":"u1","soilmoisture":40,"temperature":20,"humidity":50}`)
	rec = doRequest(t, rm, http.MethodPost, "/api/sensor-data", `{"userId":"u1","soilmoisture":45,"temperature":20,"humidity":50}`)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected soil change of 5 to be skipped with threshold 10, got %d", rec.Code)
	}
}

func TestHealthAndCORS(t *testing.T) {
	rm := setupRouteManager(t)

	rec := doRequest(t, rm, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var health map[string]string
	decodeJSON(t, rec, &health)
	if health["status"] != "ok" || health["database"] != "connected" {
		t.Errorf("Expected ok/connected, got %v", health)
	}
	if _, ok := health["error"]; ok {
		t.Errorf("Expected no error on a healthy database, got %q", health["error"])
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/sensor-data", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	preflight := httptest.NewRecorder()
	rm.Router.ServeHTTP(preflight, req)

	if preflight.Code != http.StatusNoContent {
		t.Errorf("Expected status 204 for preflight, got %d", preflight.Code)
	}
	if got := preflight.Header().Get("Access-Control-Allow-Origin"); got != "http://dashboard.local" {
		t.Errorf("Expected allowed origin header, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.local")
	other := httptest.NewRecorder()
	rm.Router.ServeHTTP(other, req)
	if got := other.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no allowed origin header, got %q", got)
	}
}

// unhealthyRepository fails pings and reports the checker state
type unhealthyRepository struct {
	ReadingRepository
	status database.HealthStatus
}

func (u unhealthyRepository) Ping(ctx context.Context) error {
	return errors.New("database connection is not healthy")
}

func (u unhealthyRepository) HealthStatus() database.HealthStatus {
	return u.status
}

func TestHealthReportsCheckerState(t *testing.T) {
	lastCheck := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	repo := unhealthyRepository{status: database.HealthStatus{
		Healthy:   false,
		LastCheck: lastCheck,
		Error:     "connection refused",
	}}

	rm := NewRouteManager(repo, nil, nil, RouteOptions{Logger: discardLogger()})
	rm.Setup()

	rec := doRequest(t, rm, http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got %d", rec.Code)
	}

	var health map[string]string
	decodeJSON(t, rec, &health)
	if health["status"] != "degraded" || health["database"] != "disconnected" {
		t.Errorf("Expected degraded/disconnected, got %v", health)
	}
	if health["lastCheck"] != lastCheck.Format(time.RFC3339) {
		t.Errorf("Expected lastCheck %s, got %q", lastCheck.Format(time.RFC3339), health["lastCheck"])
	}
	if health["error"] != "connection refused" {
		t.Errorf("Expected checker error, got %q", health["error"])
	}
}

func TestThresholdOverrides(t *testing.T) {
	persisted := models.ThresholdConfig{SoilThreshold: 3, TempThreshold: 1.5, HumThreshold: 3}

	tests := []struct {
		name     string
		env      models.ThresholdConfig
		expected []string
	}{
		{"same values", models.ThresholdConfig{SoilThreshold: 3, TempThreshold: 1.5, HumThreshold: 3}, nil},
		{"soil differs", models.ThresholdConfig{SoilThreshold: 5, TempThreshold: 1.5, HumThreshold: 3}, []string{"SOIL_THRESHOLD"}},
		{"temp and hum differ", models.ThresholdConfig{SoilThreshold: 3, TempThreshold: 3, HumThreshold: 2}, []string{"TEMP_THRESHOLD", "HUM_THRESHOLD"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := thresholdOverrides(tt.env, persisted)
			if strings.Join(got, ",") != strings.Join(tt.expected, ",") {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}
