package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sguter90/soilmaestro/pkg/models"
)

const readingColumns = `id, user_id, soilmoisture, temperature, humidity, latitude, longitude, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReading(row rowScanner) (models.Reading, error) {
	var r models.Reading
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.SoilMoisture,
		&r.Temperature,
		&r.Humidity,
		&r.Latitude,
		&r.Longitude,
		&r.CreatedAt,
	)
	r.CreatedAt = r.CreatedAt.UTC()
	return r, err
}

// storeTime normalizes timestamps to what both dialects keep losslessly
func storeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// InsertReading stores a reading, assigning its id and creation time
func (dm *DatabaseManager) InsertReading(ctx context.Context, r models.Reading) (models.Reading, error) {
	r.ID = uuid.New()
	r.CreatedAt = storeTime(dm.now())

	query := `
        INSERT INTO sensor_readings (` + readingColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `

	_, err := dm.ExecWithHealthCheck(ctx, query,
		r.ID,
		r.UserID,
		r.SoilMoisture,
		r.Temperature,
		r.Humidity,
		r.Latitude,
		r.Longitude,
		r.CreatedAt,
	)
	if err != nil {
		return models.Reading{}, fmt.Errorf("failed to insert reading: %w", err)
	}

	return r, nil
}

// LatestReadingForUser returns the most recent reading of a user or
// models.ErrNotFound
func (dm *DatabaseManager) LatestReadingForUser(ctx context.Context, userID string) (*models.Reading, error) {
	query := `
        SELECT ` + readingColumns + `
        FROM sensor_readings
        WHERE user_id = ?
        ORDER BY created_at DESC, id DESC
        LIMIT 1
    `
	return dm.queryOneReading(ctx, query, userID)
}

// LatestReading returns the most recent reading overall or models.ErrNotFound
func (dm *DatabaseManager) LatestReading(ctx context.Context) (*models.Reading, error) {
	query := `
        SELECT ` + readingColumns + `
        FROM sensor_readings
        ORDER BY created_at DESC, id DESC
        LIMIT 1
    `
	return dm.queryOneReading(ctx, query)
}

func (dm *DatabaseManager) queryOneReading(ctx context.Context, query string, args ...interface{}) (*models.Reading, error) {
	row, err := dm.QueryRowWithHealthCheck(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	r, err := scanReading(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan reading: %w", err)
	}
	return &r, nil
}

// GetReadings returns one page of readings, newest first
func (dm *DatabaseManager) GetReadings(ctx context.Context, params models.ReadingQueryParams) (*models.ReadingsResponse, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	whereClause := ""
	args := []interface{}{}
	if params.UserID != "" {
		whereClause = " WHERE user_id = ?"
		args = append(args, params.UserID)
	}

	row, err := dm.QueryRowWithHealthCheck(ctx, `SELECT COUNT(*) FROM sensor_readings`+whereClause, args...)
	if err != nil {
		return nil, err
	}

	var totalCount int
	if err := row.Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	query := `SELECT ` + readingColumns + ` FROM sensor_readings` + whereClause +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	queryArgs := append(args, params.Limit, params.Offset())

	rows, err := dm.QueryWithHealthCheck(ctx, query, queryArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := []models.Reading{}
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return models.NewReadingsResponse(readings, totalCount, params), nil
}

// FieldRange returns the values of one field recorded within [start, end],
// oldest first
func (dm *DatabaseManager) FieldRange(ctx context.Context, field models.Field, start, end time.Time) ([]models.FieldValue, error) {
	if _, err := models.ParseField(string(field)); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
        SELECT %s, created_at
        FROM sensor_readings
        WHERE created_at >= ? AND created_at <= ?
        ORDER BY created_at ASC, id ASC
    `, field.Column())

	rows, err := dm.QueryWithHealthCheck(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := []models.FieldValue{}
	for rows.Next() {
		var v models.FieldValue
		if err := rows.Scan(&v.Value, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s value: %w", field, err)
		}
		v.CreatedAt = v.CreatedAt.UTC()
		values = append(values, v)
	}

	return values, rows.Err()
}

// CountReadings returns the number of stored readings
func (dm *DatabaseManager) CountReadings(ctx context.Context) (int, error) {
	row, err := dm.QueryRowWithHealthCheck(ctx, `SELECT COUNT(*) FROM sensor_readings`)
	if err != nil {
		return 0, err
	}

	var count int
	err = row.Scan(&count)
	return count, err
}
