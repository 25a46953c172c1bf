package config

import (
	"strings"
	"time"

	"github.com/havenworks/docvault/internal/breaker"
	"github.com/havenworks/docvault/pkg/retry"
	"github.com/havenworks/docvault/pkg/storage"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit values
// are preserved. A negative retry.max_retries is kept as-is, since it is the
// documented way to disable retrying.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyAPIDefaults(&cfg.API)
	applyBreakerDefaults(&cfg.Breaker)
	applyRetryDefaults(&cfg.Retry)
	applyRateLimitDefaults(&cfg.RateLimit)
	applyUploadDefaults(&cfg.Upload)
	applyCacheDefaults(&cfg.Cache)
	applyArchiveDefaults(&cfg.Archive)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyAPIDefaults(cfg *APIConfig) {
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = storage.DefaultHTTPTimeout
	}
}

func applyBreakerDefaults(cfg *BreakerConfig) {
	if cfg.Threshold == 0 {
		cfg.Threshold = breaker.DefaultThreshold
	}
	if cfg.ResetTimeout == 0 {
		cfg.ResetTimeout = breaker.DefaultResetTimeout
	}
}

func applyRetryDefaults(cfg *RetryConfig) {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = retry.DefaultMaxRetries
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = retry.DefaultBaseDelay
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = retry.DefaultMaxDelay
	}
	if cfg.JitterFraction == 0 {
		cfg.JitterFraction = retry.DefaultJitterFraction
	}
}

func applyRateLimitDefaults(cfg *RateLimitConfig) {
	if cfg.RequestsPerSecond > 0 && cfg.Burst == 0 {
		cfg.Burst = 10
	}
}

func applyUploadDefaults(cfg *UploadConfig) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = storage.DefaultChunkSize
	}
	if cfg.SingleShotLimit == 0 {
		cfg.SingleShotLimit = storage.DefaultSingleShotLimit
	}
	if cfg.DefaultRoot == "" {
		cfg.DefaultRoot = storage.DefaultRoot
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.TTL == 0 {
		cfg.TTL = 5 * time.Minute
	}
}

func applyArchiveDefaults(cfg *ArchiveConfig) {
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
}
