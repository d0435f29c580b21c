package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Config struct {
	// HTTP Server
	Port string

	// Storage
	DataBackend  string
	SQLiteDBPath string

	// AMQP
	AMQPURL          string
	AMQPExchange     string
	AMQPQueue        string
	AMQPResultsQueue string

	// Detection worker pool
	DetectWorkers   int
	DetectQueueSize int
	DetectCacheSize int
	DetectCacheTTL  time.Duration
	DetectSchedule  string

	// Google Sheets export (optional)
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/bankcal.db"),

		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "bankcal"),
		AMQPQueue:        getEnv("AMQP_QUEUE", "detect_requests"),
		AMQPResultsQueue: getEnv("AMQP_RESULTS_QUEUE", "series_detected"),

		DetectWorkers:   getEnvInt("DETECT_WORKERS", 2),
		DetectQueueSize: getEnvInt("DETECT_QUEUE_SIZE", 16),
		DetectCacheSize: getEnvInt("DETECT_CACHE_SIZE", 64),
		DetectCacheTTL:  getEnvDuration("DETECT_CACHE_TTL", 10*time.Minute),
		DetectSchedule:  getEnv("DETECT_SCHEDULE", "@every 1h"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Recurring"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// AMQP is optional; when set it must be complete
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPResultsQueue == "" {
			errors = append(errors, "AMQP results queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate detection worker pool
	if c.DetectWorkers < 1 || c.DetectWorkers > 64 {
		errors = append(errors, fmt.Sprintf("invalid detect workers %d: must be between 1 and 64", c.DetectWorkers))
	}
	if c.DetectQueueSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid detect queue size %d: must be at least 1", c.DetectQueueSize))
	}
	if c.DetectCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid detect cache size %d: must not be negative", c.DetectCacheSize))
	}
	if c.DetectCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid detect cache TTL %v: must be at least 1 second", c.DetectCacheTTL))
	}
	if c.DetectSchedule != "" {
		if _, err := cron.ParseStandard(c.DetectSchedule); err != nil {
			errors = append(errors, fmt.Sprintf("invalid detect schedule '%s': %v", c.DetectSchedule, err))
		}
	}

	if c.GoogleSpreadsheetID != "" && c.GoogleSheetName == "" {
		errors = append(errors, "Google sheet name is required when GOOGLE_SPREADSHEET_ID is set")
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
