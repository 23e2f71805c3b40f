package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"moodtunes/internal/history"
)

// Config holds all application configuration
type Config struct {
	Port        string
	Environment string

	// Search backend
	SearchBaseURL    string
	SearchTimeout    time.Duration
	SearchRatePerSec float64
	RespectRobots    bool

	// History store
	HistoryMaxAge             time.Duration
	HistoryAutoCleanThreshold int
	HistoryTargetSize         int
	HistoryScope              history.Scope
	SessionIdleTTL            time.Duration
	HistorySnapshotInterval   time.Duration

	// Retry policy per query
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration

	// Emotion classifier
	ClassifierURL           string
	ClassifierTimeout       time.Duration
	ClassifierCheckInterval time.Duration

	MoodKeywordsFile string // empty uses the embedded table
	RedisURL         string // empty disables history snapshots

	AllowedOrigins    string
	DefaultMaxResults int
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8000"),
		Environment: getEnv("ENVIRONMENT", "development"),

		SearchBaseURL:    getEnv("SEARCH_BASE_URL", "https://www.youtube.com"),
		SearchTimeout:    getDurationEnv("SEARCH_TIMEOUT", 15*time.Second),
		SearchRatePerSec: getFloatEnv("SEARCH_RATE_PER_SEC", 1),
		RespectRobots:    getBoolEnv("RESPECT_ROBOTS", false),

		HistoryMaxAge:             getDurationEnv("HISTORY_MAX_AGE", history.DefaultMaxAge),
		HistoryAutoCleanThreshold: getIntEnv("HISTORY_AUTO_CLEAN_THRESHOLD", history.DefaultAutoCleanThreshold),
		HistoryTargetSize:         getIntEnv("HISTORY_TARGET_SIZE", history.DefaultTargetSize),
		HistoryScope:              history.Scope(strings.ToLower(getEnv("HISTORY_SCOPE", string(history.ScopeProcess)))),
		SessionIdleTTL:            getDurationEnv("SESSION_IDLE_TTL", 2*time.Hour),
		HistorySnapshotInterval:   getDurationEnv("HISTORY_SNAPSHOT_INTERVAL", time.Minute),

		RetryMaxAttempts: getIntEnv("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:   getDurationEnv("RETRY_BASE_DELAY", 2*time.Second),

		ClassifierURL:           getEnv("CLASSIFIER_URL", ""),
		ClassifierTimeout:       getDurationEnv("CLASSIFIER_TIMEOUT", 20*time.Second),
		ClassifierCheckInterval: getDurationEnv("CLASSIFIER_CHECK_INTERVAL", 10*time.Minute),

		MoodKeywordsFile: getEnv("MOOD_KEYWORDS_FILE", ""),
		RedisURL:         getEnv("REDIS_URL", ""),

		AllowedOrigins:    getEnv("ALLOWED_ORIGINS", ""),
		DefaultMaxResults: getIntEnv("DEFAULT_MAX_RESULTS", 15),
	}
}

// HistoryConfig returns the store tunables
func (c *Config) HistoryConfig() history.Config {
	return history.Config{
		MaxAge:             c.HistoryMaxAge,
		AutoCleanThreshold: c.HistoryAutoCleanThreshold,
		TargetSize:         c.HistoryTargetSize,
	}
}

// Validate reports settings the server cannot start with
func (c *Config) Validate() error {
	if err := c.HistoryConfig().Validate(); err != nil {
		return err
	}
	if _, err := history.ParseScope(string(c.HistoryScope)); err != nil {
		return err
	}
	if c.HistoryScope == history.ScopeSession && c.SessionIdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be positive in session scope, got %v", c.SessionIdleTTL)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.RetryMaxAttempts)
	}
	if c.RetryBaseDelay < 0 {
		return fmt.Errorf("RETRY_BASE_DELAY must not be negative, got %v", c.RetryBaseDelay)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go durations ("90s", "30m") or plain seconds
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
