package database

import (
	"database/sql"
	"embed"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
)

//go:embed sql/postgres/*.sql sql/sqlite/*.sql
var migrationFiles embed.FS

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// MigrationsRunner handles database migrations
type MigrationsRunner struct {
	db         *sql.DB
	dialect    Dialect
	migrations []Migration
	logger     *slog.Logger
	baseLogger *slog.Logger
}

// NewMigrationsRunner creates a new migration runner for the given dialect
func NewMigrationsRunner(db *sql.DB, dialect Dialect, logger *slog.Logger) (*MigrationsRunner, error) {
	if logger == nil {
		logger = slog.Default()
	}

	runner := &MigrationsRunner{
		db:         db,
		dialect:    dialect,
		migrations: []Migration{},
		logger:     logger,
		baseLogger: logger,
	}

	if err := runner.loadMigrations(); err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	return runner, nil
}

// DisableLogging silences the runner, used by tests
func (r *MigrationsRunner) DisableLogging() {
	r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

// EnableLogging restores the logger passed at construction
func (r *MigrationsRunner) EnableLogging() {
	r.logger = r.baseLogger
}

// migrationDir returns the embedded directory holding the dialect's files
func migrationDir(dialect Dialect) string {
	return path.Join("sql", string(dialect))
}

// loadMigrations loads all .up.sql migration files of the dialect
func (r *MigrationsRunner) loadMigrations() error {
	dir := migrationDir(r.dialect)
	entries, err := migrationFiles.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migration directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		filename := entry.Name()
		if !strings.HasSuffix(filename, ".up.sql") {
			continue
		}

		// 000001_name.up.sql
		version, name, ok := parseMigrationName(filename)
		if !ok {
			r.logger.Warn("Skipping invalid migration file", "file", filename)
			continue
		}

		content, err := migrationFiles.ReadFile(path.Join(dir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		r.migrations = append(r.migrations, Migration{
			Version: version,
			Name:    name,
			SQL:     string(content),
		})
	}

	sort.Slice(r.migrations, func(i, j int) bool {
		return r.migrations[i].Version < r.migrations[j].Version
	})

	return nil
}

func parseMigrationName(filename string) (int, string, bool) {
	prefix, rest, found := strings.Cut(filename, "_")
	if !found {
		return 0, "", false
	}

	var version int
	if _, err := fmt.Sscanf(prefix, "%d", &version); err != nil || version <= 0 {
		return 0, "", false
	}

	return version, strings.TrimSuffix(rest, ".up.sql"), true
}

// createMigrationsTable creates the schema_migrations table if it doesn't exist
func (r *MigrationsRunner) createMigrationsTable() error {
	query := `
        CREATE TABLE IF NOT EXISTS schema_migrations (
            version INTEGER PRIMARY KEY,
            name VARCHAR(255) NOT NULL,
            applied_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        )
    `
	_, err := r.db.Exec(query)
	return err
}

// getAppliedMigrations returns a set of applied migration versions
func (r *MigrationsRunner) getAppliedMigrations() (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := r.db.Query("SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// Pending returns the migrations not applied yet
func (r *MigrationsRunner) Pending() ([]Migration, error) {
	if err := r.createMigrationsTable(); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := r.getAppliedMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	var pending []Migration
	for _, migration := range r.migrations {
		if !applied[migration.Version] {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}

// Run executes all pending migrations, each in its own transaction
func (r *MigrationsRunner) Run() error {
	pending, err := r.Pending()
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		r.logger.Info("No pending migrations")
		return nil
	}

	r.logger.Info("Found pending migrations", "count", len(pending))

	for _, migration := range pending {
		r.logger.Info("Applying migration", "version", migration.Version, "name", migration.Name)

		tx, err := r.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.Exec(migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec(
			rebind(r.dialect, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)"),
			migration.Version, migration.Name,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	r.logger.Info("All migrations completed successfully", "applied", len(pending))
	return nil
}
