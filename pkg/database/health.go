package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// HealthChecker monitors and maintains database connection health
type HealthChecker struct {
	db            *sql.DB
	connect       func() (*sql.DB, error)
	checkInterval time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
	ticker        *time.Ticker
	mu            sync.RWMutex
	isHealthy     bool
	lastCheck     time.Time
	lastErr       error
	logger        *slog.Logger
}

// HealthStatus is a snapshot of the checker state
type HealthStatus struct {
	Healthy   bool      `json:"healthy"`
	LastCheck time.Time `json:"lastCheck,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(db *sql.DB, checkInterval time.Duration, logger *slog.Logger) *HealthChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthChecker{
		db:            db,
		checkInterval: checkInterval,
		stopChan:      make(chan struct{}),
		isHealthy:     true,
		logger:        logger,
	}
}

// Start begins monitoring the database connection
func (chc *HealthChecker) Start() {
	chc.ticker = time.NewTicker(chc.checkInterval)

	go func() {
		for {
			select {
			case <-chc.stopChan:
				chc.ticker.Stop()
				return
			case <-chc.ticker.C:
				chc.checkConnection()
			}
		}
	}()
}

// Stop stops monitoring the database connection. It is safe to call more
// than once.
func (chc *HealthChecker) Stop() {
	chc.stopOnce.Do(func() {
		close(chc.stopChan)
	})
}

// DB returns the current connection, which changes after a reconnect
func (chc *HealthChecker) DB() *sql.DB {
	chc.mu.RLock()
	defer chc.mu.RUnlock()
	return chc.db
}

// checkConnection performs a health check on the database connection
func (chc *HealthChecker) checkConnection() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := chc.DB().PingContext(ctx)

	chc.mu.Lock()
	defer chc.mu.Unlock()

	chc.lastCheck = time.Now().UTC()
	chc.lastErr = err

	if err != nil {
		chc.logger.Error("Database connection health check failed", "error", err)
		chc.isHealthy = false

		if err := chc.reconnect(); err != nil {
			chc.logger.Error("Failed to reconnect to database", "error", err)
		}
		return
	}

	if !chc.isHealthy {
		chc.logger.Info("Database connection restored")
	}
	chc.isHealthy = true
}

// reconnect attempts to re-establish the database connection. Callers hold mu.
func (chc *HealthChecker) reconnect() error {
	if chc.connect == nil {
		return fmt.Errorf("no reconnect function configured")
	}

	newDB, err := chc.connect()
	if err != nil {
		return err
	}

	if chc.db != nil {
		chc.db.Close()
	}
	chc.db = newDB
	chc.isHealthy = true
	chc.lastErr = nil
	chc.logger.Info("Database connection re-established")
	return nil
}

// IsHealthy returns the current health status of the connection
func (chc *HealthChecker) IsHealthy() bool {
	chc.mu.RLock()
	defer chc.mu.RUnlock()
	return chc.isHealthy
}

// Status returns the current health snapshot
func (chc *HealthChecker) Status() HealthStatus {
	chc.mu.RLock()
	defer chc.mu.RUnlock()

	status := HealthStatus{Healthy: chc.isHealthy, LastCheck: chc.lastCheck}
	if chc.lastErr != nil {
		status.Error = chc.lastErr.Error()
	}
	return status
}

// EnsureConnection ensures the connection is healthy before executing a query
func (chc *HealthChecker) EnsureConnection(ctx context.Context) error {
	chc.mu.RLock()
	isHealthy := chc.isHealthy
	db := chc.db
	chc.mu.RUnlock()

	if !isHealthy {
		return fmt.Errorf("database connection is not healthy")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		// the caller gave up; says nothing about the database
		if ctx.Err() != nil {
			return ctx.Err()
		}

		chc.mu.Lock()
		chc.isHealthy = false
		chc.lastErr = err
		chc.mu.Unlock()
		return fmt.Errorf("database connection check failed: %w", err)
	}

	return nil
}
