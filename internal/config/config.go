package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Database configuration
	Database DatabaseConfig `json:"database"`

	// Kafka configuration
	Kafka KafkaConfig `json:"kafka"`

	// Metrics configuration
	Metrics MetricsConfig `json:"metrics"`

	// Scheduler configuration
	Scheduler SchedulerConfig `json:"scheduler"`

	// Vault configuration
	Vault VaultConfig `json:"vault"`

	// Tracker integration configuration
	Tracker TrackerConfig `json:"tracker"`

	// Catalog integration configuration
	Catalog CatalogConfig `json:"catalog"`

	// Media server integration configuration
	MediaServer MediaServerConfig `json:"media_server"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	// Port is the admin API port
	Port int `json:"port"`

	// Host is the server bind address
	Host string `json:"host"`

	// APIKey authenticates admin API requests
	APIKey string `json:"api_key"`

	// ReadTimeout for HTTP requests
	ReadTimeout time.Duration `json:"read_timeout"`

	// WriteTimeout for HTTP responses
	WriteTimeout time.Duration `json:"write_timeout"`

	// ShutdownTimeout for graceful shutdown
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	// Type of database (sqlite, postgres, memory)
	Type string `json:"type"`

	// Path to SQLite database file
	Path string `json:"path"`

	// Host for postgres
	Host string `json:"host"`

	// Port for postgres
	Port int `json:"port"`

	// Name of the database
	Name string `json:"name"`

	// Username for database authentication
	Username string `json:"username"`

	// Password for database authentication
	Password string `json:"password"`

	// SSLMode for postgres connections
	SSLMode string `json:"ssl_mode"`
}

// ConnectionString returns a PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.Username, d.Password, d.Name, d.SSLMode)
}

// KafkaConfig contains Kafka connection settings
type KafkaConfig struct {
	// Enabled indicates if job events are published to Kafka
	Enabled bool `json:"enabled"`

	// Brokers is a list of Kafka broker addresses
	Brokers []string `json:"brokers"`

	// Topic for job run events
	Topic string `json:"topic"`
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	// Enabled indicates if the metrics endpoint is served
	Enabled bool `json:"enabled"`

	// Port for the metrics server
	Port int `json:"port"`

	// Path of the metrics endpoint
	Path string `json:"path"`
}

// SchedulerConfig contains job schedules and sync settings
type SchedulerConfig struct {
	// WatchlistSchedule is the cron expression for the watchlist sync job
	WatchlistSchedule string `json:"watchlist_schedule"`

	// ListsSchedule is the cron expression for the catalog lists sync job
	ListsSchedule string `json:"lists_schedule"`

	// TokenRefreshSchedule is the cron expression for the proactive token refresh job
	TokenRefreshSchedule string `json:"token_refresh_schedule"`

	// RunOnStart triggers one sync cycle right after startup
	RunOnStart bool `json:"run_on_start"`
}

// VaultConfig contains credential encryption settings
type VaultConfig struct {
	// EncryptionSecret derives the AES key for credentials at rest.
	// Must be at least 32 characters.
	EncryptionSecret string `json:"-"`
}

// TrackerConfig contains tracker API settings
type TrackerConfig struct {
	// BaseURL of the tracker API
	BaseURL string `json:"base_url"`

	// TokenURL of the tracker OAuth token endpoint
	TokenURL string `json:"token_url"`

	// ClientID of the registered OAuth application
	ClientID string `json:"client_id"`

	// ClientSecret of the registered OAuth application
	ClientSecret string `json:"-"`

	// RedirectURI registered with the OAuth application
	RedirectURI string `json:"redirect_uri"`

	// RateLimitInterval is the minimum spacing between tracker calls
	RateLimitInterval time.Duration `json:"rate_limit_interval"`
}

// CatalogConfig contains catalog API settings
type CatalogConfig struct {
	// BaseURL of the catalog API
	BaseURL string `json:"base_url"`

	// APIKey for the catalog API
	APIKey string `json:"-"`

	// ListIDs names the catalog lists to sync
	ListIDs []string `json:"list_ids"`

	// RateLimitInterval is the minimum spacing between catalog calls
	RateLimitInterval time.Duration `json:"rate_limit_interval"`
}

// MediaServerConfig contains media server API settings
type MediaServerConfig struct {
	// BaseURL of the media server
	BaseURL string `json:"base_url"`

	// APIKey for the media server API
	APIKey string `json:"-"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:            getEnvAsInt("PORT", 5000),
			Host:            getEnv("HOST", "0.0.0.0"),
			APIKey:          getEnv("API_KEY", ""),
			ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Type:     getEnv("DB_TYPE", "sqlite"),
			Path:     getEnv("DB_PATH", "./list-scheduler.db"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "list_scheduler"),
			Username: getEnv("DB_USERNAME", ""),
			Password: getEnv("DB_PASSWORD", ""),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvAsBool("KAFKA_ENABLED", false),
			Brokers: getEnvAsStringSlice("KAFKA_BROKERS", []string{}),
			Topic:   getEnv("KAFKA_TOPIC", "list-scheduler.job-events"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
			Port:    getEnvAsInt("METRICS_PORT", 9000),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
		Scheduler: SchedulerConfig{
			WatchlistSchedule:    getEnv("WATCHLIST_SCHEDULE", "0 */6 * * *"),
			ListsSchedule:        getEnv("LISTS_SCHEDULE", "30 */6 * * *"),
			TokenRefreshSchedule: getEnv("TOKEN_REFRESH_SCHEDULE", "0 3 * * *"),
			RunOnStart:           getEnvAsBool("SYNC_RUN_ON_START", false),
		},
		Vault: VaultConfig{
			EncryptionSecret: getEnv("ENCRYPTION_SECRET", ""),
		},
		Tracker: TrackerConfig{
			BaseURL:           getEnv("TRACKER_URL", "https://api.trakt.tv"),
			TokenURL:          getEnv("TRACKER_TOKEN_URL", "https://api.trakt.tv/oauth/token"),
			ClientID:          getEnv("TRACKER_CLIENT_ID", ""),
			ClientSecret:      getEnv("TRACKER_CLIENT_SECRET", ""),
			RedirectURI:       getEnv("TRACKER_REDIRECT_URI", "urn:ietf:wg:oauth:2.0:oob"),
			RateLimitInterval: getEnvAsDuration("TRACKER_RATE_LIMIT_INTERVAL", time.Second),
		},
		Catalog: CatalogConfig{
			BaseURL:           getEnv("CATALOG_URL", "https://api.mdblist.com"),
			APIKey:            getEnv("CATALOG_API_KEY", ""),
			ListIDs:           getEnvAsStringSlice("CATALOG_LIST_IDS", []string{}),
			RateLimitInterval: getEnvAsDuration("CATALOG_RATE_LIMIT_INTERVAL", 10*time.Second),
		},
		MediaServer: MediaServerConfig{
			BaseURL: getEnv("MEDIA_SERVER_URL", "http://localhost:5055"),
			APIKey:  getEnv("MEDIA_SERVER_API_KEY", ""),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
	}
	if c.Server.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}

	switch c.Database.Type {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for SQLite")
		}
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required for postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if len(c.Vault.EncryptionSecret) < 32 {
		return fmt.Errorf("ENCRYPTION_SECRET must be at least 32 characters")
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required when kafka is enabled")
		}
	}

	if c.Tracker.BaseURL == "" || c.Tracker.TokenURL == "" {
		return fmt.Errorf("tracker URLs are required")
	}
	if c.MediaServer.BaseURL == "" {
		return fmt.Errorf("media server base URL is required")
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

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
