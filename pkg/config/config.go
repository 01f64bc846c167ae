package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the warehouse core.
// Configuration can come from a YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8090"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (distributed locks for data target polling)
	Redis RedisConfig `yaml:"redis"`

	// Event queue configuration
	Queue QueueConfig `yaml:"queue"`

	// Export defaults
	Export ExportConfig `yaml:"export"`

	// DataTargets polling configuration
	DataTargets DataTargetConfig `yaml:"data_targets"`

	// Encryption key for export and data target config secrets.
	// Either a base64 encoded 32-byte key or a passphrase.
	// Server will fail to start if this is not set.
	CredentialsKey string `yaml:"-" env:"CREDENTIALS_KEY"` // Secret - not in YAML

	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"deep_lynx"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"deep_lynx"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds Redis connection configuration. Redis is optional:
// without it, data target polling degrades to per-process locking only.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// QueueConfig holds event queue processor settings.
type QueueConfig struct {
	// PollInterval is how often the queue processor checks for pending tasks.
	PollInterval time.Duration `yaml:"poll_interval" env:"QUEUE_POLL_INTERVAL" env-default:"5s"`
	// DeliveryTimeout bounds each webhook POST.
	DeliveryTimeout time.Duration `yaml:"delivery_timeout" env:"QUEUE_DELIVERY_TIMEOUT" env-default:"10s"`
}

// ExportConfig holds defaults for export drivers.
type ExportConfig struct {
	// DefaultBatchSize is the shadow-row batch size when an export config
	// does not specify one.
	DefaultBatchSize int `yaml:"default_batch_size" env:"EXPORT_DEFAULT_BATCH_SIZE" env-default:"100"`
}

// DataTargetConfig holds data target manager settings.
type DataTargetConfig struct {
	// ScanInterval is how often the manager wakes active targets.
	ScanInterval time.Duration `yaml:"scan_interval" env:"DATA_TARGET_SCAN_INTERVAL" env-default:"10s"`
	// LockTTL is the lifetime of the per-target poll lock.
	LockTTL time.Duration `yaml:"lock_ttl" env:"DATA_TARGET_LOCK_TTL" env-default:"30s"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if cfg.CredentialsKey == "" {
		return nil, fmt.Errorf("CREDENTIALS_KEY must be set")
	}

	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
