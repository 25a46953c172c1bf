// Package storage is the resilient client for the remote document store.
//
// The Client facade composes token management, path sanitization, retry with
// exponential backoff, a shared circuit breaker and chunked uploads behind
// per-operation methods. All remote failures are normalized into the typed
// errors of this package; callers switch on error types, never on raw HTTP
// status codes.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/havenworks/docvault/internal/breaker"
	"github.com/havenworks/docvault/internal/ratelimiter"
	"github.com/havenworks/docvault/pkg/retry"
)

const (
	// DefaultChunkSize is the upload chunk size for large files.
	DefaultChunkSize = 5 * 1024 * 1024

	// DefaultSingleShotLimit is the largest payload uploaded in one request.
	DefaultSingleShotLimit = 4 * 1024 * 1024

	// DefaultHTTPTimeout bounds a single network attempt.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultCacheTTL is how long container lookups are served from cache.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultRoot is the folder prefix enforced on free-form upload paths.
	DefaultRoot = "Documents"
)

// UploadCheckpoint records the progress of an in-flight chunked upload so an
// interrupted transfer can be diagnosed or resumed.
type UploadCheckpoint struct {
	ContainerID string
	Path        string
	Name        string
	UploadURL   string
	TotalSize   int64
	BytesSent   int64
	UpdatedAt   time.Time
}

// CheckpointJournal persists upload checkpoints. Implemented by the
// badger-backed journal; nil disables checkpointing.
type CheckpointJournal interface {
	Save(ctx context.Context, cp UploadCheckpoint) error
	Delete(ctx context.Context, containerID, path, name string) error
}

// Archiver mirrors uploaded payloads to secondary storage. Implemented by the
// S3 archive; nil disables mirroring. Archive failures are logged, never
// surfaced: the remote store is the source of truth.
type Archiver interface {
	Archive(ctx context.Context, containerID, path, name string, data []byte) error
}

// ClientConfig configures a Client. Zero values select the documented
// defaults; only BaseURL and Tokens are mandatory.
type ClientConfig struct {
	// BaseURL is the remote API root, without a trailing slash.
	BaseURL string

	// Tokens supplies bearer credentials for every request.
	Tokens TokenSource

	// ContainerTypeID is attached to containers created by this client.
	ContainerTypeID string

	// Breaker tunes the shared circuit breaker.
	Breaker breaker.Config

	// Retry tunes the transient-failure backoff policy.
	Retry retry.Config

	// HTTPTimeout bounds one network attempt, not the whole operation.
	HTTPTimeout time.Duration

	// ChunkSize is the byte-range size for chunked uploads.
	ChunkSize int64

	// SingleShotLimit is the threshold above which uploads switch to a
	// chunked session.
	SingleShotLimit int64

	// MaxFileSize rejects oversized uploads before any network call.
	// Zero means unlimited.
	MaxFileSize int64

	// AllowedExtensions whitelists upload file extensions (with or without
	// the leading dot, case-insensitive). Empty allows everything.
	AllowedExtensions []string

	// RateLimit caps outbound requests per second. Zero disables limiting.
	RateLimit float64

	// RateBurst is the rate limiter burst size.
	RateBurst int

	// CacheTTL is the container lookup cache lifetime.
	CacheTTL time.Duration

	// DefaultRoot is the folder prefix enforced on free-form paths.
	DefaultRoot string

	// Journal receives upload checkpoints. Optional.
	Journal CheckpointJournal

	// Archiver mirrors uploaded payloads. Optional.
	Archiver Archiver

	// Metrics receives client telemetry. Optional.
	Metrics Metrics
}

// Client is the storage facade. Safe for concurrent use: the breaker, rate
// limiter and token manager serialize their own state, and operations share
// nothing else.
type Client struct {
	exec            *executor
	breaker         *breaker.Breaker
	cache           *ristretto.Cache[string, Container]
	cacheTTL        time.Duration
	containerTypeID string
	chunkSize       int64
	singleShotLimit int64
	maxFileSize     int64
	allowedExt      map[string]struct{}
	defaultRoot     string
	journal         CheckpointJournal
	archiver        Archiver
	metrics         Metrics
}

// NewClient validates the configuration and builds a ready-to-use client.
// No network call is made; use TestConnectivity to verify reachability.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, &ValidationError{Field: "BaseURL", Reason: "base URL is required"}
	}
	if cfg.Tokens == nil {
		return nil, &ValidationError{Field: "Tokens", Reason: "a token source is required"}
	}

	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = DefaultHTTPTimeout
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.SingleShotLimit <= 0 {
		cfg.SingleShotLimit = DefaultSingleShotLimit
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.DefaultRoot == "" {
		cfg.DefaultRoot = DefaultRoot
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, Container]{
		NumCounters: 1 << 12,
		MaxCost:     1 << 10,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create container cache: %w", err)
	}

	brk := breaker.New(cfg.Breaker)
	brk.OnStateChange(func(s breaker.State) {
		cfg.Metrics.SetBreakerState(s.String())
	})

	var limiter *ratelimiter.Limiter
	if cfg.RateLimit > 0 {
		limiter = ratelimiter.New(cfg.RateLimit, cfg.RateBurst)
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			allowed[ext] = struct{}{}
		}
	}

	c := &Client{
		exec: &executor{
			baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
			http:    newHTTPClient(cfg.HTTPTimeout),
			tokens:  cfg.Tokens,
			breaker: brk,
			retry:   cfg.Retry,
			limiter: limiter,
			metrics: cfg.Metrics,
		},
		breaker:         brk,
		cache:           cache,
		cacheTTL:        cfg.CacheTTL,
		containerTypeID: cfg.ContainerTypeID,
		chunkSize:       cfg.ChunkSize,
		singleShotLimit: cfg.SingleShotLimit,
		maxFileSize:     cfg.MaxFileSize,
		allowedExt:      allowed,
		defaultRoot:     cfg.DefaultRoot,
		journal:         cfg.Journal,
		archiver:        cfg.Archiver,
		metrics:         cfg.Metrics,
	}
	return c, nil
}

// BreakerState exposes the circuit state for health reporting.
func (c *Client) BreakerState() breaker.State {
	return c.breaker.State()
}

// Close releases the container cache. The client must not be used after.
func (c *Client) Close() {
	c.cache.Close()
}
