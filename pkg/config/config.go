// Package config loads, defaults and validates the docvault configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DOCVAULT_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
//
// Each optional subsystem (archive, journal, metrics) carries its own section
// and an enabled flag; factories return nil for disabled subsystems so the
// client runs without them.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete docvault configuration.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Auth holds the client-credentials settings for token acquisition
	Auth AuthConfig `mapstructure:"auth"`

	// API locates the remote document store
	API APIConfig `mapstructure:"api"`

	// Breaker tunes the shared circuit breaker
	Breaker BreakerConfig `mapstructure:"breaker"`

	// Retry tunes the transient-failure backoff policy
	Retry RetryConfig `mapstructure:"retry"`

	// RateLimit caps outbound request throughput
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// Upload tunes file upload behavior
	Upload UploadConfig `mapstructure:"upload"`

	// Cache tunes the container lookup cache
	Cache CacheConfig `mapstructure:"cache"`

	// Journal configures the upload checkpoint journal
	Journal JournalConfig `mapstructure:"journal"`

	// Archive configures the S3 archive mirror
	Archive ArchiveConfig `mapstructure:"archive"`

	// Metrics toggles Prometheus metrics collection
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// AuthConfig holds OAuth2 client-credentials settings.
type AuthConfig struct {
	// ClientID is the application (client) id
	ClientID string `mapstructure:"client_id" validate:"required"`

	// ClientSecret is the client secret. Prefer the DOCVAULT_AUTH_CLIENT_SECRET
	// environment variable over the config file for this one.
	ClientSecret string `mapstructure:"client_secret" validate:"required"`

	// TenantID selects the directory tenant; the token URL is derived from it
	TenantID string `mapstructure:"tenant_id"`

	// TokenURL overrides the derived token endpoint (for emulators)
	TokenURL string `mapstructure:"token_url"`

	// Scopes requested with each token
	Scopes []string `mapstructure:"scopes"`
}

// APIConfig locates the remote document store.
type APIConfig struct {
	// BaseURL is the API root, e.g. https://graph.microsoft.com/v1.0/storage/fileStorage
	BaseURL string `mapstructure:"base_url" validate:"required,url"`

	// ContainerTypeID scopes container listing and creation
	ContainerTypeID string `mapstructure:"container_type_id"`

	// HTTPTimeout bounds a single network attempt
	HTTPTimeout time.Duration `mapstructure:"http_timeout" validate:"gt=0"`
}

// BreakerConfig tunes the circuit breaker.
type BreakerConfig struct {
	// Threshold is the consecutive-failure count that opens the circuit
	Threshold int `mapstructure:"threshold" validate:"gt=0"`

	// ResetTimeout is the cooldown before an open circuit allows a probe
	ResetTimeout time.Duration `mapstructure:"reset_timeout" validate:"gt=0"`
}

// RetryConfig tunes the backoff policy.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// Negative disables retrying.
	MaxRetries int `mapstructure:"max_retries"`

	// BaseDelay is the exponential base delay
	BaseDelay time.Duration `mapstructure:"base_delay" validate:"gt=0"`

	// MaxDelay caps the computed delay
	MaxDelay time.Duration `mapstructure:"max_delay" validate:"gt=0"`

	// JitterFraction is the maximum jitter relative to the exponential term
	JitterFraction float64 `mapstructure:"jitter_fraction" validate:"gte=0,lte=1"`
}

// RateLimitConfig caps outbound request throughput.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate. 0 disables limiting.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`

	// Burst is the rate limiter burst size
	Burst int `mapstructure:"burst" validate:"gte=0"`
}

// UploadConfig tunes file uploads.
type UploadConfig struct {
	// ChunkSize is the byte-range size for chunked uploads
	ChunkSize int64 `mapstructure:"chunk_size" validate:"gt=0"`

	// SingleShotLimit is the threshold above which uploads use a session
	SingleShotLimit int64 `mapstructure:"single_shot_limit" validate:"gt=0"`

	// MaxFileSize rejects oversized uploads client-side. 0 means unlimited.
	MaxFileSize int64 `mapstructure:"max_file_size" validate:"gte=0"`

	// AllowedExtensions whitelists upload extensions. Empty allows all.
	AllowedExtensions []string `mapstructure:"allowed_extensions"`

	// DefaultRoot is the folder prefix enforced on free-form paths
	DefaultRoot string `mapstructure:"default_root" validate:"required"`
}

// CacheConfig tunes the container lookup cache.
type CacheConfig struct {
	// TTL is the cache entry lifetime
	TTL time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

// JournalConfig configures the upload checkpoint journal.
type JournalConfig struct {
	// Enabled turns checkpointing on
	Enabled bool `mapstructure:"enabled"`

	// Path is the BadgerDB directory. Required when enabled.
	Path string `mapstructure:"path"`
}

// ArchiveConfig configures the S3 archive mirror.
type ArchiveConfig struct {
	// Enabled turns mirroring on
	Enabled bool `mapstructure:"enabled"`

	// S3 holds the S3-specific settings, decoded by the factory
	S3 map[string]any `mapstructure:"s3"`
}

// MetricsConfig toggles Prometheus metrics.
type MetricsConfig struct {
	// Enabled initializes the global registry and wires client telemetry
	Enabled bool `mapstructure:"enabled"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses the default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variable and config file handling.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the DOCVAULT_ prefix and underscores.
	// Example: DOCVAULT_AUTH_CLIENT_SECRET=...
	v.SetEnvPrefix("DOCVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file is
// acceptable; defaults and environment variables take over.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "docvault")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "docvault")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
