package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sguter90/soilmaestro/pkg/models"
)

// ReadingStore is the persistence the ingest path needs
type ReadingStore interface {
	LatestReadingForUser(ctx context.Context, userID string) (*models.Reading, error)
	InsertReading(ctx context.Context, r models.Reading) (models.Reading, error)
}

// LatestCache keeps the most recent stored reading per user close at hand.
// Get returns (nil, nil) on a miss.
type LatestCache interface {
	Get(ctx context.Context, userID string) (*models.Reading, error)
	Set(ctx context.Context, r models.Reading) error
}

// Result describes what happened to an ingested reading
type Result struct {
	Stored  bool
	Reading models.Reading
	Reason  string
}

// Service runs the ingest-and-filter path: validate, load the previous
// reading, decide, persist.
type Service struct {
	store       ReadingStore
	thresholds  *ThresholdCell
	cache       LatestCache
	anonymousID string
	logger      *slog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithCache puts a latest-reading cache in front of the store
func WithCache(cache LatestCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithAnonymousUser accepts readings without userId under the given id
func WithAnonymousUser(id string) Option {
	return func(s *Service) {
		s.anonymousID = id
	}
}

// WithLogger sets the logger used for decisions and cache failures
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates an ingest service
func NewService(store ReadingStore, thresholds *ThresholdCell, opts ...Option) *Service {
	s := &Service{
		store:      store,
		thresholds: thresholds,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest validates input and stores it when it differs significantly from
// the user's previous reading. Validation failures are returned as
// *models.ValidationError before any store call is made.
func (s *Service) Ingest(ctx context.Context, input models.ReadingInput) (Result, error) {
	candidate, err := input.ToReading(s.anonymousID)
	if err != nil {
		return Result{}, err
	}
	return s.IngestReading(ctx, candidate)
}

// IngestReading runs the filter for an already converted reading
func (s *Service) IngestReading(ctx context.Context, candidate models.Reading) (Result, error) {
	if err := Validate(candidate); err != nil {
		return Result{}, err
	}

	last, err := s.lastForUser(ctx, candidate.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load latest reading for %s: %w", candidate.UserID, err)
	}

	decision := Decide(candidate, last, s.thresholds.Get())
	if !decision.Store {
		s.logger.Debug("Reading skipped", "user_id", candidate.UserID, "reason", decision.Reason)
		return Result{Stored: false, Reason: decision.Reason}, nil
	}

	stored, err := s.store.InsertReading(ctx, decision.Record)
	if err != nil {
		return Result{}, fmt.Errorf("failed to store reading: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, stored); err != nil {
			s.logger.Warn("Failed to update latest reading cache", "user_id", stored.UserID, "error", err)
		}
	}

	s.logger.Info("Reading stored", "user_id", stored.UserID, "id", stored.ID, "reason", decision.Reason)
	return Result{Stored: true, Reading: stored, Reason: decision.Reason}, nil
}

// lastForUser consults the cache first and falls back to the store. A user
// without readings yields (nil, nil).
func (s *Service) lastForUser(ctx context.Context, userID string) (*models.Reading, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.logger.Warn("Latest reading cache lookup failed", "user_id", userID, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	last, err := s.store.LatestReadingForUser(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, *last); err != nil {
			s.logger.Warn("Failed to fill latest reading cache", "user_id", userID, "error", err)
		}
	}
	return last, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}
