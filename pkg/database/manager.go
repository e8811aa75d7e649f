package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour and driver of a DatabaseManager
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect maps a DB_DRIVER value to a Dialect
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "postgres", "postgresql", "":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	}
	return "", fmt.Errorf("unsupported sql driver %q", s)
}

// Options configures NewDatabaseManager
type Options struct {
	Dialect        Dialect
	DSN            string
	HealthInterval time.Duration
	Logger         *slog.Logger
}

// DatabaseManager handles all database operations
type DatabaseManager struct {
	dialect       Dialect
	healthChecker *HealthChecker
	logger        *slog.Logger
	now           func() time.Time
}

// NewDatabaseManager opens the database and starts health checking
func NewDatabaseManager(opts Options) (*DatabaseManager, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = 30 * time.Second
	}

	connect := func() (*sql.DB, error) {
		return connectDatabase(opts.Dialect, opts.DSN)
	}

	db, err := connect()
	if err != nil {
		return nil, err
	}

	dm := newManager(db, opts.Dialect, opts.HealthInterval, opts.Logger)
	// a fresh in-memory database would be empty and unmigrated
	if !isMemoryDSN(opts.Dialect, opts.DSN) {
		dm.healthChecker.connect = connect
	}
	dm.healthChecker.Start()

	return dm, nil
}

func newManager(db *sql.DB, dialect Dialect, interval time.Duration, logger *slog.Logger) *DatabaseManager {
	return &DatabaseManager{
		dialect:       dialect,
		healthChecker: NewHealthChecker(db, interval, logger),
		logger:        logger,
		now:           time.Now,
	}
}

// GetDB returns the underlying database connection
func (dm *DatabaseManager) GetDB() *sql.DB {
	return dm.healthChecker.DB()
}

// Dialect returns the SQL dialect in use
func (dm *DatabaseManager) Dialect() Dialect {
	return dm.dialect
}

// Close closes the database connection and stops health checking
func (dm *DatabaseManager) Close() error {
	dm.healthChecker.Stop()
	if db := dm.GetDB(); db != nil {
		return db.Close()
	}
	return nil
}

// QueryWithHealthCheck executes a query with connection health verification.
// Placeholders are written as '?' and rebound for the active dialect.
func (dm *DatabaseManager) QueryWithHealthCheck(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if err := dm.healthChecker.EnsureConnection(ctx); err != nil {
		return nil, err
	}

	return dm.GetDB().QueryContext(ctx, dm.rebind(query), args...)
}

// QueryRowWithHealthCheck executes a query that returns a single row with health check
func (dm *DatabaseManager) QueryRowWithHealthCheck(ctx context.Context, query string, args ...interface{}) (*sql.Row, error) {
	if err := dm.healthChecker.EnsureConnection(ctx); err != nil {
		return nil, err
	}

	return dm.GetDB().QueryRowContext(ctx, dm.rebind(query), args...), nil
}

// ExecWithHealthCheck executes a statement with connection health verification
func (dm *DatabaseManager) ExecWithHealthCheck(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if err := dm.healthChecker.EnsureConnection(ctx); err != nil {
		return nil, err
	}

	return dm.GetDB().ExecContext(ctx, dm.rebind(query), args...)
}

// IsConnectionHealthy returns the current health status
func (dm *DatabaseManager) IsConnectionHealthy() bool {
	return dm.healthChecker.IsHealthy()
}

// Ping verifies the connection is usable
func (dm *DatabaseManager) Ping(ctx context.Context) error {
	return dm.healthChecker.EnsureConnection(ctx)
}

// HealthStatus returns the last known connection state
func (dm *DatabaseManager) HealthStatus() HealthStatus {
	return dm.healthChecker.Status()
}

// Init initializes the database with migrations
func (dm *DatabaseManager) Init() error {
	dm.logger.Info("Running database migrations", "dialect", dm.dialect)

	runner, err := NewMigrationsRunner(dm.GetDB(), dm.dialect, dm.logger)
	if err != nil {
		return fmt.Errorf("failed to create migration runner: %w", err)
	}

	if err := runner.Run(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	dm.logger.Info("Database initialization completed successfully")
	return nil
}

// rebind rewrites '?' placeholders to $N for postgres
func (dm *DatabaseManager) rebind(query string) string {
	return rebind(dm.dialect, query)
}

func rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// connectDatabase establishes a connection to the database
func connectDatabase(dialect Dialect, dsn string) (*sql.DB, error) {
	driver := string(dialect)
	if dialect == DialectSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	switch dialect {
	case DialectSQLite:
		// single writer; also keeps in-memory databases on one connection
		db.SetMaxOpenConns(1)
	default:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// sqliteDSN makes timestamps round-trip as sortable text
func sqliteDSN(path string) string {
	if path == "" {
		path = ":memory:"
	}
	if strings.Contains(path, "_time_format=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_time_format=sqlite"
}

// isMemoryDSN reports whether dsn names an in-memory sqlite database
func isMemoryDSN(dialect Dialect, dsn string) bool {
	if dialect != DialectSQLite {
		return false
	}
	return dsn == "" || strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// PostgresDSN builds a lib/pq connection string from discrete settings
func PostgresDSN(host, port, user, password, dbName, sslmode string) string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbName, sslmode,
	)
}
