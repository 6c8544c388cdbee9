package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends
const (
	StorageFile   = "file"
	StorageMemory = "memory"
	StorageAzure  = "azure"
	StorageRedis  = "redis"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Backend endpoints
	SEOURL         string
	APIURL         string
	PostURL        string
	FetchTimeout   time.Duration
	RequestTimeout time.Duration

	// Detailed data polling
	PollInterval        time.Duration
	DetailedDataTimeout time.Duration

	// Progress simulation
	ProgressDuration time.Duration
	ProgressTick     time.Duration

	// Backend health checks (cron spec)
	ServerPollSchedule string

	// Persistence
	StorageBackend   string
	StateDir         string
	StorageAccount   string
	StorageContainer string
	RedisURL         string
	RedisPrefix      string

	DefaultTheme string

	// Notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		SEOURL:         strings.TrimRight(getEnv("SEO_URL", "http://localhost:8000"), "/"),
		APIURL:         strings.TrimRight(getEnv("API_URL", "http://localhost:5000"), "/"),
		PostURL:        strings.TrimRight(getEnv("POST_URL", "http://localhost:5050"), "/"),
		FetchTimeout:   getDurationEnv("FETCH_TIMEOUT", 5*time.Second),
		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", 60*time.Second),

		PollInterval:        getDurationEnv("POLL_INTERVAL", 3*time.Second),
		DetailedDataTimeout: getDurationEnv("DETAILED_DATA_TIMEOUT", 30*time.Second),

		ProgressDuration: getDurationEnv("PROGRESS_DURATION", 20*time.Second),
		ProgressTick:     getDurationEnv("PROGRESS_TICK", 200*time.Millisecond),

		ServerPollSchedule: getEnv("SERVER_POLL_SCHEDULE", "@every 5s"),

		StorageBackend:   strings.ToLower(getEnv("STORAGE_BACKEND", StorageFile)),
		StateDir:         getEnv("STATE_DIR", "./data"),
		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "seo-assistant"),
		RedisURL:         getEnv("REDIS_URL", ""),
		RedisPrefix:      getEnv("REDIS_PREFIX", "seo-assistant:"),

		DefaultTheme: strings.ToLower(getEnv("DEFAULT_THEME", "light")),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// GraphQLURL is the SEO backend's GraphQL endpoint
func (c *Config) GraphQLURL() string {
	return c.SEOURL + "/graphql"
}

// HealthEndpoints lists the backend servers checked by the scheduler
func (c *Config) HealthEndpoints() map[string]string {
	return map[string]string{
		"API":  c.APIURL + "/health",
		"Post": c.PostURL + "/health",
		"SEO":  c.SEOURL + "/health",
	}
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case StorageFile, StorageMemory:
	case StorageAzure:
		if c.StorageAccount == "" {
			return fmt.Errorf("AZURE_STORAGE_ACCOUNT is required when STORAGE_BACKEND is azure")
		}
	case StorageRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORAGE_BACKEND is redis")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of file, memory, azure, redis")
	}

	if c.DefaultTheme != "light" && c.DefaultTheme != "dark" {
		return fmt.Errorf("DEFAULT_THEME must be 'light' or 'dark'")
	}

	durations := map[string]time.Duration{
		"FETCH_TIMEOUT":         c.FetchTimeout,
		"REQUEST_TIMEOUT":       c.RequestTimeout,
		"POLL_INTERVAL":         c.PollInterval,
		"DETAILED_DATA_TIMEOUT": c.DetailedDataTimeout,
		"PROGRESS_DURATION":     c.ProgressDuration,
		"PROGRESS_TICK":         c.ProgressTick,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	if c.ProgressTick > c.ProgressDuration {
		return fmt.Errorf("PROGRESS_TICK must not exceed PROGRESS_DURATION")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go durations ("3s") or bare milliseconds ("3000"),
// the unit the frontend configuration used.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	return defaultValue
}
