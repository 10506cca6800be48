package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv    string
	LogLevel  string
	LogFormat string
	SessionID string

	// Storage
	DatabasePath string // local SQLite file
	DatabaseURL  string // Postgres, used when set
	RedisURL     string

	// Messaging
	RabbitMQURL string

	// Engine
	Cadence          time.Duration
	IdleCadence      time.Duration
	WorkDayStartHour int
	WorkDayEndHour   int
	StoreRetries     int
	StoreBackoff     time.Duration

	// Worker
	WorkerHealthAddr string

	// Calendar backend
	CalendarBackend string // memory, caldav or google
	CalendarID      string
	CalDAVURL       string
	CalDAVUsername  string
	CalDAVPassword  string
	GoogleToken     string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:    getEnv("CHIEF_ENV", "development"),
		LogLevel:  getEnv("CHIEF_LOG_LEVEL", "info"),
		LogFormat: getEnv("CHIEF_LOG_FORMAT", ""),
		SessionID: getEnv("CHIEF_SESSION_ID", "00000000-0000-0000-0000-000000000001"),

		DatabasePath: getEnv("CHIEF_DB", defaultDatabasePath()),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		RedisURL:     getEnv("REDIS_URL", ""),

		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		Cadence:          getDurationEnv("CHIEF_CADENCE", 5*time.Minute),
		IdleCadence:      getDurationEnv("CHIEF_IDLE_CADENCE", 30*time.Minute),
		WorkDayStartHour: getIntEnv("CHIEF_DAY_START_HOUR", 9),
		WorkDayEndHour:   getIntEnv("CHIEF_DAY_END_HOUR", 17),
		StoreRetries:     getIntEnv("CHIEF_STORE_RETRIES", 2),
		StoreBackoff:     getDurationEnv("CHIEF_STORE_BACKOFF", 200*time.Millisecond),

		WorkerHealthAddr: getEnv("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),

		CalendarBackend: getEnv("CHIEF_CALENDAR", "memory"),
		CalendarID:      getEnv("CALENDAR_ID", "primary"),
		CalDAVURL:       getEnv("CALDAV_URL", ""),
		CalDAVUsername:  getEnv("CALDAV_USERNAME", ""),
		CalDAVPassword:  getEnv("CALDAV_PASSWORD", ""),
		GoogleToken:     getEnv("GOOGLE_ACCESS_TOKEN", ""),
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "chief.db"
	}
	return filepath.Join(home, ".chief", "chief.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
