// Package config loads the service configuration from the environment. A
// .env file in the working directory is read first when present.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/sguter90/soilmaestro/pkg/database"
	"github.com/sguter90/soilmaestro/pkg/models"
)

// Config lists the tunable parameters of the service
type Config struct {
	ServerPort     string
	AllowedOrigins []string

	DBDriver    string
	DatabaseURL string
	SQLitePath  string

	MongoURI      string
	MongoDatabase string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MQTTBroker   string
	MQTTClientID string
	MQTTTopic    string

	Thresholds        models.ThresholdConfig
	// ThresholdsFromEnv is set when any *_THRESHOLD variable was given
	ThresholdsFromEnv bool

	AnonymousUserID string
	Location        *time.Location

	LogLevel  slog.Level
	LogFormat string
}

const (
	defaultServerPort    = "3000"
	defaultDBDriver      = "postgres"
	defaultSQLitePath    = "data/soilmaestro.db"
	defaultMongoDatabase = "soilmaestro"
	defaultMQTTClientID  = "soilmaestro-server"
	defaultMQTTTopic     = "soilmaestro"
	defaultLogFormat     = "text"
)

// Load reads .env (if present) and derives the configuration from the
// environment, falling back to defaults
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv derives the configuration from the current environment only
func FromEnv() (Config, error) {
	cfg := Config{
		ServerPort:      getEnv("SERVER_PORT", defaultServerPort),
		AllowedOrigins:  splitList(getEnv("SERVER_ALLOWED_ORIGINS", "")),
		DBDriver:        strings.ToLower(getEnv("DB_DRIVER", defaultDBDriver)),
		SQLitePath:      getEnv("SQLITE_PATH", defaultSQLitePath),
		MongoURI:        getEnv("MONGO_URI", ""),
		MongoDatabase:   getEnv("MONGO_DATABASE", defaultMongoDatabase),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		MQTTBroker:      getEnv("MQTT_BROKER", ""),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", defaultMQTTClientID),
		MQTTTopic:       getEnv("MQTT_TOPIC", defaultMQTTTopic),
		AnonymousUserID: strings.TrimSpace(getEnv("ANONYMOUS_USER_ID", "")),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
		Thresholds:      models.DefaultThresholds(),
	}

	cfg.DatabaseURL = getEnv("DATABASE_URL", "")
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = database.PostgresDSN(
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "soil_user"),
			getEnv("DB_PASSWORD", "soil_pass"),
			getEnv("DB_NAME", "soil_db"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}

	thresholds := []struct {
		key string
		dst *float64
	}{
		{"SOIL_THRESHOLD", &cfg.Thresholds.SoilThreshold},
		{"TEMP_THRESHOLD", &cfg.Thresholds.TempThreshold},
		{"HUM_THRESHOLD", &cfg.Thresholds.HumThreshold},
	}
	for _, th := range thresholds {
		if os.Getenv(th.key) != "" {
			cfg.ThresholdsFromEnv = true
		}
		if *th.dst, err = getFloat(th.key, *th.dst); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid threshold configuration: %w", err)
	}

	if cfg.Location, err = time.LoadLocation(getEnv("TIMEZONE", "Local")); err != nil {
		return Config{}, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	if cfg.LogLevel, err = parseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return Config{}, err
	}

	switch cfg.DBDriver {
	case "postgres", "sqlite", "mongo":
	default:
		return Config{}, fmt.Errorf("invalid DB_DRIVER %q (valid: postgres, sqlite, mongo)", cfg.DBDriver)
	}
	if cfg.DBDriver == "mongo" && cfg.MongoURI == "" {
		return Config{}, fmt.Errorf("MONGO_URI is required when DB_DRIVER=mongo")
	}

	return cfg, nil
}

// SQLDSN returns the connection string for the SQL drivers
func (c Config) SQLDSN() string {
	if c.DBDriver == "sqlite" {
		return c.SQLitePath
	}
	return c.DatabaseURL
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT
func (c Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
