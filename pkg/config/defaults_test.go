package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_ZeroConfig(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)

	if cfg.Logging.Level != "INFO" || cfg.Logging.Format != "text" || cfg.Logging.Output != "stderr" {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
	if cfg.API.HTTPTimeout != 30*time.Second {
		t.Errorf("http timeout = %v", cfg.API.HTTPTimeout)
	}
	if cfg.Breaker.Threshold != 5 || cfg.Breaker.ResetTimeout != 60*time.Second {
		t.Errorf("breaker defaults = %+v", cfg.Breaker)
	}
	if cfg.Retry.MaxRetries != 3 || cfg.Retry.BaseDelay != time.Second || cfg.Retry.MaxDelay != 30*time.Second {
		t.Errorf("retry defaults = %+v", cfg.Retry)
	}
	if cfg.Retry.JitterFraction != 0.3 {
		t.Errorf("jitter fraction = %v", cfg.Retry.JitterFraction)
	}
	if cfg.Archive.S3 == nil {
		t.Error("archive S3 map must be initialized")
	}
}

func TestApplyDefaults_NegativeMaxRetriesPreserved(t *testing.T) {
	cfg := Config{Retry: RetryConfig{MaxRetries: -1}}
	ApplyDefaults(&cfg)

	if cfg.Retry.MaxRetries != -1 {
		t.Errorf("max retries = %d, want -1 preserved", cfg.Retry.MaxRetries)
	}
}

func TestApplyDefaults_LevelNormalized(t *testing.T) {
	cfg := Config{Logging: LoggingConfig{Level: "warn"}}
	ApplyDefaults(&cfg)

	if cfg.Logging.Level != "WARN" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
}

func TestApplyDefaults_RateLimitBurst(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	if cfg.RateLimit.Burst != 0 {
		t.Errorf("burst = %d, want 0 when limiting is disabled", cfg.RateLimit.Burst)
	}

	cfg = Config{RateLimit: RateLimitConfig{RequestsPerSecond: 20}}
	ApplyDefaults(&cfg)
	if cfg.RateLimit.Burst != 10 {
		t.Errorf("burst = %d, want default 10 when limiting is enabled", cfg.RateLimit.Burst)
	}
}
