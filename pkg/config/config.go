package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cairnhq/cairn/pkg/observability"
	"github.com/cairnhq/cairn/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      storage.Config
	Observability ObservabilityConfig
	Identity      IdentityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// IdentityConfig holds user directory settings
type IdentityConfig struct {
	// DirectoryCacheSize bounds the LRU of user display records.
	DirectoryCacheSize int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Observability: loadObservabilityConfig(),
		Identity:      loadIdentityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("CAIRN_HOST", "0.0.0.0"),
		Port:            getEnv("CAIRN_PORT", "8080"),
		ReadTimeout:     getEnvDuration("CAIRN_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("CAIRN_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("CAIRN_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("CAIRN_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadDatabaseConfig() storage.Config {
	cfg := storage.DefaultConfig()
	cfg.URL = getEnv("CAIRN_DATABASE_URL", "")

	if maxConns := getEnvInt("CAIRN_DATABASE_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("CAIRN_DATABASE_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("CAIRN_DATABASE_TIMEOUT", 0); timeout > 0 {
		cfg.Timeout = timeout
	}
	if lifetime := getEnvDuration("CAIRN_DATABASE_MAX_LIFETIME", 0); lifetime > 0 {
		cfg.MaxLifetime = lifetime
	}

	return cfg
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("CAIRN_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("CAIRN_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("CAIRN_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("CAIRN_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("CAIRN_OTEL_SERVICE_NAME", "cairn"),
		OTelServiceVersion: getEnv("CAIRN_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("CAIRN_OTEL_INSECURE", true),
	}
}

func loadIdentityConfig() IdentityConfig {
	return IdentityConfig{
		DirectoryCacheSize: getEnvInt("CAIRN_DIRECTORY_CACHE_SIZE", 4096),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required (set CAIRN_DATABASE_URL)")
	}
	if c.Identity.DirectoryCacheSize <= 0 {
		return fmt.Errorf("directory cache size must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
