package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/sguter90/soilmaestro/pkg/models"
)

// ThresholdStore persists the singleton threshold settings record
type ThresholdStore interface {
	GetThresholds(ctx context.Context) (models.ThresholdConfig, error)
	SaveThresholds(ctx context.Context, cfg models.ThresholdConfig) error
}

// ThresholdCell holds the active threshold configuration in memory and
// keeps it in sync with the settings record. Readers always observe the
// last committed value.
type ThresholdCell struct {
	mu      sync.RWMutex
	current models.ThresholdConfig
	store   ThresholdStore
}

// NewThresholdCell creates a cell holding initial. store may be nil, in
// which case updates are kept in memory only.
func NewThresholdCell(initial models.ThresholdConfig, store ThresholdStore) *ThresholdCell {
	return &ThresholdCell{current: initial, store: store}
}

// Load reads the persisted settings record into the cell, creating it from
// the current value when none exists yet.
func (c *ThresholdCell) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cfg, err := c.store.GetThresholds(ctx)
	if err == nil {
		c.current = cfg
		return nil
	}
	if !isNotFound(err) {
		return err
	}

	initial := c.current
	initial.Version = 1
	initial.UpdatedAt = time.Now().UTC()
	if err := c.store.SaveThresholds(ctx, initial); err != nil {
		return err
	}
	c.current = initial
	return nil
}

// Get returns the active thresholds
func (c *ThresholdCell) Get() models.ThresholdConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Update merges input into the active thresholds, persists and publishes
// the result under a new version.
func (c *ThresholdCell) Update(ctx context.Context, input models.ThresholdInput) (models.ThresholdConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := input.Apply(c.current)
	if err != nil {
		return c.current, err
	}
	next.Version = c.current.Version + 1
	next.UpdatedAt = time.Now().UTC()

	if c.store != nil {
		if err := c.store.SaveThresholds(ctx, next); err != nil {
			return c.current, err
		}
	}

	c.current = next
	return next, nil
}
