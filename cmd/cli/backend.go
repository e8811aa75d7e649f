package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sguter90/soilmaestro/pkg/config"
	"github.com/sguter90/soilmaestro/pkg/database"
	"github.com/sguter90/soilmaestro/pkg/ingest"
	"github.com/sguter90/soilmaestro/pkg/mongostore"
)

// Store is everything the server needs from a storage backend
type Store interface {
	ReadingRepository
	ingest.ThresholdStore
}

// openStore connects the backend selected by DB_DRIVER. SQL backends are
// migrated before use.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (Store, func() error, error) {
	if cfg.DBDriver == "mongo" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		store, err := mongostore.Connect(connectCtx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, nil, err
		}
		closer := func() error {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return store.Close(closeCtx)
		}
		return store, closer, nil
	}

	dm, err := openDatabaseManager(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	if err := dm.Init(); err != nil {
		dm.Close()
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return dm, dm.Close, nil
}

func openDatabaseManager(cfg config.Config, logger *slog.Logger) (*database.DatabaseManager, error) {
	dialect, err := database.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, err
	}

	dm, err := database.NewDatabaseManager(database.Options{
		Dialect: dialect,
		DSN:     cfg.SQLDSN(),
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dm, nil
}
