package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/roadpulse/roadpulse/pkg/observability"
	"github.com/roadpulse/roadpulse/pkg/replication"
	"github.com/roadpulse/roadpulse/pkg/store"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Store configuration (local bounded JSON store)
	Store store.Config

	// Replication scheduler configuration
	Replication replication.Config

	// Backends configuration (all optional)
	Backends BackendsConfig

	// CalendarPath optionally points at a YAML holiday calendar. Empty
	// means the built-in holiday set is used.
	CalendarPath string

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// BackendsConfig holds replication backend settings. Each backend is
// enabled only when its connection settings are present.
type BackendsConfig struct {
	// PostgreSQL mirror
	PostgresURL string

	// S3 backup archive
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool

	// Redis analytics cache (L2)
	RedisURL string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Store:         loadStoreConfig(),
		Replication:   loadReplicationConfig(),
		Backends:      loadBackendsConfig(),
		CalendarPath:  getEnv("ROADPULSE_CALENDAR_PATH", ""),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("ROADPULSE_HOST", "0.0.0.0"),
		Port:            getEnv("ROADPULSE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("ROADPULSE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("ROADPULSE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("ROADPULSE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("ROADPULSE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("ROADPULSE_HEALTH_PORT", "9090"),
	}
}

// loadStoreConfig loads local store configuration from environment
func loadStoreConfig() store.Config {
	cfg := store.DefaultConfig(getEnv("ROADPULSE_STORE_PATH", "data/traffic.json"))

	if maxBytes := getEnvInt64("ROADPULSE_STORE_MAX_BYTES", 0); maxBytes > 0 {
		cfg.MaxBytes = maxBytes
	}
	if maxPatterns := getEnvInt("ROADPULSE_STORE_MAX_PATTERNS_PER_KEY", 0); maxPatterns > 0 {
		cfg.MaxPatternsPerKey = maxPatterns
	}
	if maxRoutes := getEnvInt("ROADPULSE_STORE_MAX_ROUTES_PER_KEY", 0); maxRoutes > 0 {
		cfg.MaxRoutesPerKey = maxRoutes
	}

	return cfg
}

// loadReplicationConfig loads replication scheduler configuration from environment
func loadReplicationConfig() replication.Config {
	cfg := replication.DefaultConfig()

	if workers := getEnvInt("ROADPULSE_REPLICATION_WORKERS", 0); workers > 0 {
		cfg.Workers = workers
	}
	if timeout := getEnvDuration("ROADPULSE_REPLICATION_TIMEOUT", 0); timeout > 0 {
		cfg.AttemptTimeout = timeout
	}
	if interval := getEnvDuration("ROADPULSE_BACKUP_INTERVAL", 0); interval > 0 {
		cfg.BackupInterval = interval
	}
	if delay := getEnvDuration("ROADPULSE_STARTUP_BACKUP_DELAY", 0); delay > 0 {
		cfg.StartupBackupDelay = delay
	}
	if threshold := getEnvInt("ROADPULSE_STARTUP_BACKUP_THRESHOLD", 0); threshold > 0 {
		cfg.StartupBackupThreshold = threshold
	}
	if drain := getEnvDuration("ROADPULSE_DRAIN_TIMEOUT", 0); drain > 0 {
		cfg.DrainTimeout = drain
	}

	return cfg
}

// loadBackendsConfig loads replication backend configuration from environment
func loadBackendsConfig() BackendsConfig {
	return BackendsConfig{
		PostgresURL:    getEnv("ROADPULSE_POSTGRES_URL", ""),
		S3Bucket:       getEnv("ROADPULSE_S3_BUCKET", ""),
		S3Region:       getEnv("ROADPULSE_S3_REGION", "us-east-1"),
		S3Endpoint:     getEnv("ROADPULSE_S3_ENDPOINT", ""),
		S3AccessKey:    getEnv("ROADPULSE_S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("ROADPULSE_S3_SECRET_KEY", ""),
		S3UsePathStyle: getEnvBool("ROADPULSE_S3_USE_PATH_STYLE", false),
		RedisURL:       getEnv("ROADPULSE_REDIS_URL", ""),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("ROADPULSE_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("ROADPULSE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("ROADPULSE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("ROADPULSE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("ROADPULSE_OTEL_SERVICE_NAME", "roadpulse"),
		OTelServiceVersion: getEnv("ROADPULSE_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("ROADPULSE_OTEL_INSECURE", true),
	}
}

// S3Config converts the backend settings into a replication S3 config.
func (b BackendsConfig) S3Config() replication.S3Config {
	return replication.S3Config{
		Bucket:       b.S3Bucket,
		Region:       b.S3Region,
		Endpoint:     b.S3Endpoint,
		AccessKey:    b.S3AccessKey,
		SecretKey:    b.S3SecretKey,
		UsePathStyle: b.S3UsePathStyle,
	}
}

// S3Enabled reports whether the S3 archive backend is configured.
func (b BackendsConfig) S3Enabled() bool { return b.S3Bucket != "" }

// PostgresEnabled reports whether the Postgres mirror is configured.
func (b BackendsConfig) PostgresEnabled() bool { return b.PostgresURL != "" }

// RedisEnabled reports whether the Redis cache is configured.
func (b BackendsConfig) RedisEnabled() bool { return b.RedisURL != "" }

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}
	if c.Store.MaxBytes < 0 {
		return fmt.Errorf("store max bytes must not be negative")
	}

	if c.Backends.S3Enabled() && c.Backends.S3Region == "" {
		return fmt.Errorf("S3 region is required when an S3 bucket is configured")
	}
	if (c.Backends.S3AccessKey == "") != (c.Backends.S3SecretKey == "") {
		return fmt.Errorf("S3 access key and secret key must be set together")
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

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
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

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
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
