package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port            string        `koanf:"port"`
	SecureCookies   bool          `koanf:"secure_cookies"`
	SessionTTL      time.Duration `koanf:"session_ttl"`
	RateLimitPerMin int           `koanf:"rate_limit_per_min"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Logging
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// Storage
	DataBackend  string `koanf:"data_backend"`
	SQLiteDBPath string `koanf:"sqlite_db_path"`

	// Cache for per-user expense lists
	CacheSize int           `koanf:"cache_size"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`

	// LLM
	LLMAPIKey         string        `koanf:"llm_api_key"`
	LLMBaseURL        string        `koanf:"llm_base_url"`
	LLMModel          string        `koanf:"llm_model"`
	LLMTimeout        time.Duration `koanf:"llm_timeout"`
	LLMRequestsPerSec float64       `koanf:"llm_requests_per_sec"`
	LLMBurst          int           `koanf:"llm_burst"`

	// AMQP, optional for the server
	AMQPURL      string `koanf:"amqp_url"`
	AMQPExchange string `koanf:"amqp_exchange"`
	AMQPQueue    string `koanf:"amqp_queue"`

	// Google Sheets mirror (worker)
	GoogleSpreadsheetID      string `koanf:"google_spreadsheet_id"`
	GoogleSheetName          string `koanf:"google_sheet_name"`
	GoogleServiceAccountJSON string `koanf:"google_service_account_json"`
	GoogleServiceAccountFile string `koanf:"google_service_account_file"`

	// Worker
	WorkerHealthCheckInterval time.Duration `koanf:"worker_health_check_interval"`
}

// Defaults returns the configuration used when nothing overrides a key.
func Defaults() *Config {
	return &Config{
		Port:            "8081",
		SessionTTL:      30 * 24 * time.Hour,
		RateLimitPerMin: 60,
		ShutdownTimeout: 30 * time.Second,

		LogLevel:  "info",
		LogFormat: "text",

		DataBackend:  "sqlite",
		SQLiteDBPath: "./data/spendwise.db",

		CacheSize: 200,
		CacheTTL:  5 * time.Minute,

		LLMBaseURL:        "https://api.openai.com/v1",
		LLMModel:          "gpt-4o-mini",
		LLMTimeout:        20 * time.Second,
		LLMRequestsPerSec: 1,
		LLMBurst:          3,

		AMQPExchange: "spendwise",
		AMQPQueue:    "expense_events",

		GoogleSheetName:           "Expenses",
		WorkerHealthCheckInterval: time.Minute,
	}
}

// AIEnabled reports whether an LLM credential is configured.
func (c *Config) AIEnabled() bool {
	return strings.TrimSpace(c.LLMAPIKey) != ""
}

// AMQPEnabled reports whether expense events should be published.
func (c *Config) AMQPEnabled() bool {
	return strings.TrimSpace(c.AMQPURL) != ""
}

// SlogLevel maps LogLevel onto a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

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

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if c.SessionTTL < time.Hour {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 hour", c.SessionTTL))
	}
	if c.RateLimitPerMin < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMin))
	}
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be positive", c.CacheTTL))
	}

	if c.AIEnabled() {
		if u, err := url.Parse(c.LLMBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid LLM base URL '%s'", c.LLMBaseURL))
		}
		if c.LLMModel == "" {
			errors = append(errors, "LLM model cannot be empty when an LLM API key is set")
		}
	}
	if c.LLMRequestsPerSec <= 0 {
		errors = append(errors, fmt.Sprintf("invalid LLM rate %v: must be positive", c.LLMRequestsPerSec))
	}
	if c.LLMBurst < 1 {
		errors = append(errors, fmt.Sprintf("invalid LLM burst %d: must be at least 1", c.LLMBurst))
	}
	if c.LLMTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid LLM timeout %v: must be positive", c.LLMTimeout))
	}

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
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateWorker checks the settings the Sheets mirror worker needs on top
// of Validate.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required for the worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required for the worker")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required for the worker")
	}
	if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
		errors = append(errors, "either SPENDWISE_GOOGLE_SERVICE_ACCOUNT_JSON or SPENDWISE_GOOGLE_SERVICE_ACCOUNT_FILE must be provided for the worker")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	if c.WorkerHealthCheckInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid health check interval %v: must be at least 1 second", c.WorkerHealthCheckInterval))
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
