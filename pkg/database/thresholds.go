package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sguter90/soilmaestro/pkg/models"
)

// GetThresholds loads the singleton threshold settings row
func (dm *DatabaseManager) GetThresholds(ctx context.Context) (models.ThresholdConfig, error) {
	query := `
        SELECT soil_threshold, temp_threshold, hum_threshold, version, updated_at
        FROM threshold_settings
        WHERE id = 1
    `

	row, err := dm.QueryRowWithHealthCheck(ctx, query)
	if err != nil {
		return models.ThresholdConfig{}, err
	}

	var cfg models.ThresholdConfig
	err = row.Scan(&cfg.SoilThreshold, &cfg.TempThreshold, &cfg.HumThreshold, &cfg.Version, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ThresholdConfig{}, models.ErrNotFound
	}
	if err != nil {
		return models.ThresholdConfig{}, fmt.Errorf("failed to load thresholds: %w", err)
	}

	cfg.UpdatedAt = cfg.UpdatedAt.UTC()
	return cfg, nil
}

// SaveThresholds creates or replaces the singleton threshold settings row
func (dm *DatabaseManager) SaveThresholds(ctx context.Context, cfg models.ThresholdConfig) error {
	query := `
        INSERT INTO threshold_settings (id, soil_threshold, temp_threshold, hum_threshold, version, updated_at)
        VALUES (1, ?, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE
        SET soil_threshold = excluded.soil_threshold,
            temp_threshold = excluded.temp_threshold,
            hum_threshold = excluded.hum_threshold,
            version = excluded.version,
            updated_at = excluded.updated_at
    `

	_, err := dm.ExecWithHealthCheck(ctx, query,
		cfg.SoilThreshold,
		cfg.TempThreshold,
		cfg.HumThreshold,
		cfg.Version,
		storeTime(cfg.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save thresholds: %w", err)
	}
	return nil
}
