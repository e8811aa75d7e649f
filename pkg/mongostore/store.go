// Package mongostore keeps readings and the threshold settings record in
// MongoDB. It implements the same query surface as the SQL backends.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v5"
	"github.com/sguter90/soilmaestro/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	readingsCollection = "sensor_readings"
	settingsCollection = "settings"
	thresholdsID       = "thresholds"
)

// readingDoc is the stored form of a reading
type readingDoc struct {
	ID           string    `bson:"_id"`
	UserID       string    `bson:"user_id"`
	SoilMoisture float64   `bson:"soilmoisture"`
	Temperature  float64   `bson:"temperature"`
	Humidity     float64   `bson:"humidity"`
	Latitude     *float64  `bson:"latitude,omitempty"`
	Longitude    *float64  `bson:"longitude,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
}

func toDoc(r models.Reading) readingDoc {
	return readingDoc{
		ID:           r.ID.String(),
		UserID:       r.UserID,
		SoilMoisture: r.SoilMoisture,
		Temperature:  r.Temperature,
		Humidity:     r.Humidity,
		Latitude:     r.Latitude.Ptr(),
		Longitude:    r.Longitude.Ptr(),
		CreatedAt:    r.CreatedAt,
	}
}

func (d readingDoc) toReading() (models.Reading, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return models.Reading{}, fmt.Errorf("invalid reading id %q: %w", d.ID, err)
	}
	return models.Reading{
		ID:           id,
		UserID:       d.UserID,
		SoilMoisture: d.SoilMoisture,
		Temperature:  d.Temperature,
		Humidity:     d.Humidity,
		Latitude:     null.FloatFromPtr(d.Latitude),
		Longitude:    null.FloatFromPtr(d.Longitude),
		CreatedAt:    d.CreatedAt.UTC(),
	}, nil
}

// thresholdDoc is the singleton threshold settings record
type thresholdDoc struct {
	ID            string    `bson:"_id"`
	SoilThreshold float64   `bson:"soil_threshold"`
	TempThreshold float64   `bson:"temp_threshold"`
	HumThreshold  float64   `bson:"hum_threshold"`
	Version       int64     `bson:"version"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

// Store is a MongoDB backed reading store
type Store struct {
	client   *mongo.Client
	readings *mongo.Collection
	settings *mongo.Collection
	logger   *slog.Logger
	now      func() time.Time
}

// Connect opens a client, verifies it and ensures the collection indexes
func Connect(ctx context.Context, uri, database string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		readings: db.Collection(readingsCollection),
		settings: db.Collection(settingsCollection),
		logger:   logger,
		now:      time.Now,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("Connected to MongoDB", "database", database)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.readings.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Close disconnects the client
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// InsertReading stores a reading, assigning its id and creation time.
// MongoDB keeps millisecond precision.
func (s *Store) InsertReading(ctx context.Context, r models.Reading) (models.Reading, error) {
	r.ID = uuid.New()
	r.CreatedAt = s.now().UTC().Truncate(time.Millisecond)

	if _, err := s.readings.InsertOne(ctx, toDoc(r)); err != nil {
		return models.Reading{}, fmt.Errorf("failed to insert reading: %w", err)
	}
	return r, nil
}

var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

// LatestReadingForUser returns the most recent reading of a user or
// models.ErrNotFound
func (s *Store) LatestReadingForUser(ctx context.Context, userID string) (*models.Reading, error) {
	return s.findOne(ctx, bson.M{"user_id": userID})
}

// LatestReading returns the most recent reading overall or models.ErrNotFound
func (s *Store) LatestReading(ctx context.Context) (*models.Reading, error) {
	return s.findOne(ctx, bson.M{})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.Reading, error) {
	var doc readingDoc
	err := s.readings.FindOne(ctx, filter, options.FindOne().SetSort(newestFirst)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find reading: %w", err)
	}

	r, err := doc.toReading()
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetReadings returns one page of readings, newest first
func (s *Store) GetReadings(ctx context.Context, params models.ReadingQueryParams) (*models.ReadingsResponse, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	filter := bson.M{}
	if params.UserID != "" {
		filter["user_id"] = params.UserID
	}

	total, err := s.readings.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	opts := options.Find().
		SetSort(newestFirst).
		SetSkip(int64(params.Offset())).
		SetLimit(int64(params.Limit))

	cursor, err := s.readings.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer cursor.Close(ctx)

	readings := []models.Reading{}
	for cursor.Next(ctx) {
		var doc readingDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode reading: %w", err)
		}
		r, err := doc.toReading()
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return models.NewReadingsResponse(readings, int(total), params), nil
}

// FieldRange returns the values of one field recorded within [start, end],
// oldest first
func (s *Store) FieldRange(ctx context.Context, field models.Field, start, end time.Time) ([]models.FieldValue, error) {
	if _, err := models.ParseField(string(field)); err != nil {
		return nil, err
	}

	filter := bson.M{"created_at": bson.M{"$gte": start.UTC(), "$lte": end.UTC()}}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.M{field.Column(): 1, "created_at": 1})

	cursor, err := s.readings.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s range: %w", field, err)
	}
	defer cursor.Close(ctx)

	values := []models.FieldValue{}
	for cursor.Next(ctx) {
		var doc readingDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode reading: %w", err)
		}
		r := models.Reading{SoilMoisture: doc.SoilMoisture, Temperature: doc.Temperature, Humidity: doc.Humidity}
		values = append(values, models.FieldValue{Value: field.Value(r), CreatedAt: doc.CreatedAt.UTC()})
	}

	return values, cursor.Err()
}

// GetThresholds loads the threshold settings record
func (s *Store) GetThresholds(ctx context.Context) (models.ThresholdConfig, error) {
	var doc thresholdDoc
	err := s.settings.FindOne(ctx, bson.M{"_id": thresholdsID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ThresholdConfig{}, models.ErrNotFound
	}
	if err != nil {
		return models.ThresholdConfig{}, fmt.Errorf("failed to load thresholds: %w", err)
	}

	return models.ThresholdConfig{
		SoilThreshold: doc.SoilThreshold,
		TempThreshold: doc.TempThreshold,
		HumThreshold:  doc.HumThreshold,
		Version:       doc.Version,
		UpdatedAt:     doc.UpdatedAt.UTC(),
	}, nil
}

// SaveThresholds creates or replaces the threshold settings record
func (s *Store) SaveThresholds(ctx context.Context, cfg models.ThresholdConfig) error {
	doc := thresholdDoc{
		ID:            thresholdsID,
		SoilThreshold: cfg.SoilThreshold,
		TempThreshold: cfg.TempThreshold,
		HumThreshold:  cfg.HumThreshold,
		Version:       cfg.Version,
		UpdatedAt:     cfg.UpdatedAt.UTC().Truncate(time.Millisecond),
	}

	_, err := s.settings.ReplaceOne(ctx, bson.M{"_id": thresholdsID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save thresholds: %w", err)
	}
	return nil
}
