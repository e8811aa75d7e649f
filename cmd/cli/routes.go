package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sguter90/soilmaestro/pkg/ingest"
	"github.com/sguter90/soilmaestro/pkg/models"
)

// ReadingRepository is the query side of a storage backend
type ReadingRepository interface {
	LatestReading(ctx context.Context) (*models.Reading, error)
	LatestReadingForUser(ctx context.Context, userID string) (*models.Reading, error)
	InsertReading(ctx context.Context, r models.Reading) (models.Reading, error)
	GetReadings(ctx context.Context, params models.ReadingQueryParams) (*models.ReadingsResponse, error)
	FieldRange(ctx context.Context, field models.Field, start, end time.Time) ([]models.FieldValue, error)
	Ping(ctx context.Context) error
}

// RouteOptions holds the optional settings of a RouteManager
type RouteOptions struct {
	AllowedOrigins []string
	Location       *time.Location
	Logger         *slog.Logger
}

// RouteManager handles all API routes
type RouteManager struct {
	readings   ReadingRepository
	ingest     *ingest.Service
	thresholds *ingest.ThresholdCell
	origins    []string
	location   *time.Location
	logger     *slog.Logger
	now        func() time.Time
	Router     *mux.Router
}

// NewRouteManager creates a new RouteManager instance
func NewRouteManager(readings ReadingRepository, service *ingest.Service, thresholds *ingest.ThresholdCell, opts RouteOptions) *RouteManager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}
	}

	return &RouteManager{
		readings:   readings,
		ingest:     service,
		thresholds: thresholds,
		origins:    opts.AllowedOrigins,
		location:   opts.Location,
		logger:     opts.Logger,
		now:        time.Now,
		Router:     mux.NewRouter(),
	}
}

const fieldPattern = "{field:soilmoisture|temp|temperature|humidity}"

// Setup configures all API routes
func (rm *RouteManager) Setup() {
	r := rm.Router
	r.Use(rm.corsMiddleware)
	r.Use(rm.loggingMiddleware)

	// Global OPTIONS handler - catches all preflight requests
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Health check
	r.HandleFunc("/health", rm.healthHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	rm.setupReadingRoutes(api.PathPrefix("/sensor-data").Subrouter())

	api.HandleFunc("/threshold", rm.getThresholdsHandler).Methods("GET")
	api.HandleFunc("/threshold", rm.setThresholdsHandler).Methods("POST")
}

// setupReadingRoutes configures the ingest and query routes
func (rm *RouteManager) setupReadingRoutes(readings *mux.Router) {
	readings.HandleFunc("", rm.postReadingHandler).Methods("POST")
	readings.HandleFunc("", rm.getReadingsHandler).Methods("GET")
	readings.HandleFunc("/latest", rm.latestHandler).Methods("GET")
	readings.HandleFunc("/user/{userId}", rm.latestForUserHandler).Methods("GET")

	readings.HandleFunc("/"+fieldPattern+"/current", rm.fieldCurrentHandler).Methods("GET")
	readings.HandleFunc("/"+fieldPattern+"/{period:day|week|month|year}", rm.fieldRollingHandler).Methods("GET")
	readings.HandleFunc("/"+fieldPattern+"/month/week/{weekNumber}", rm.fieldMonthWeekHandler).Methods("GET")
	readings.HandleFunc("/"+fieldPattern+"/year/{month}", rm.fieldYearMonthHandler).Methods("GET")
}
