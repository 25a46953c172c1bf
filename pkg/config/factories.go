package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsretry "github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/havenworks/docvault/internal/breaker"
	"github.com/havenworks/docvault/internal/journal"
	"github.com/havenworks/docvault/internal/logger"
	"github.com/havenworks/docvault/pkg/archive"
	"github.com/havenworks/docvault/pkg/auth"
	"github.com/havenworks/docvault/pkg/metrics"
	"github.com/havenworks/docvault/pkg/retry"
	"github.com/havenworks/docvault/pkg/storage"
)

// SetupLogging applies the logging configuration to the global logger.
func SetupLogging(cfg LoggingConfig) error {
	logger.SetLevel(cfg.Level)
	logger.SetFormat(cfg.Format)
	return logger.SetOutput(cfg.Output)
}

// CreateTokenManager builds the OAuth2 token manager from configuration.
func CreateTokenManager(cfg AuthConfig) (*auth.Manager, error) {
	return auth.NewManager(auth.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TenantID:     cfg.TenantID,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	})
}

// CreateJournal opens the upload checkpoint journal, or returns nil when the
// journal is disabled.
func CreateJournal(ctx context.Context, cfg JournalConfig) (*journal.Journal, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return journal.Open(ctx, journal.Config{Path: cfg.Path})
}

// CreateArchive builds the S3 archive mirror, or returns nil when the archive
// is disabled.
func CreateArchive(ctx context.Context, cfg ArchiveConfig) (*archive.Archive, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	// S3-specific settings live in a free-form section, decoded here.
	type archiveS3Config struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var s3Cfg archiveS3Config
	if err := mapstructure.Decode(cfg.S3, &s3Cfg); err != nil {
		return nil, fmt.Errorf("failed to decode archive S3 config: %w", err)
	}

	if s3Cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket is required")
	}
	if s3Cfg.Region == "" {
		return nil, fmt.Errorf("archive: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(s3Cfg.Region))

	// Custom endpoint for S3-compatible storage (MinIO, Localstack, etc.)
	if s3Cfg.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck
				return aws.Endpoint{
					URL:               s3Cfg.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	if s3Cfg.AccessKeyID != "" && s3Cfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			s3Cfg.AccessKeyID,
			s3Cfg.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := s3Cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return awsretry.NewStandard(func(o *awsretry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s3Cfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	arc, err := archive.New(ctx, archive.Config{
		Client:    client,
		Bucket:    s3Cfg.Bucket,
		KeyPrefix: s3Cfg.KeyPrefix,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("archive mirror initialized: bucket=%s, region=%s, prefix=%s",
		s3Cfg.Bucket, s3Cfg.Region, s3Cfg.KeyPrefix)
	return arc, nil
}

// CreateClient composes the fully wired storage client from configuration:
// token manager, breaker, retry policy, rate limiter, journal, archive and
// metrics.
func CreateClient(ctx context.Context, cfg *Config) (*storage.Client, error) {
	tokens, err := CreateTokenManager(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create token manager: %w", err)
	}

	jnl, err := CreateJournal(ctx, cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload journal: %w", err)
	}

	arc, err := CreateArchive(ctx, cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive mirror: %w", err)
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	clientCfg := storage.ClientConfig{
		BaseURL:         cfg.API.BaseURL,
		Tokens:          tokens,
		ContainerTypeID: cfg.API.ContainerTypeID,
		Breaker: breaker.Config{
			Threshold:    cfg.Breaker.Threshold,
			ResetTimeout: cfg.Breaker.ResetTimeout,
		},
		Retry: retry.Config{
			MaxRetries:     cfg.Retry.MaxRetries,
			BaseDelay:      cfg.Retry.BaseDelay,
			MaxDelay:       cfg.Retry.MaxDelay,
			JitterFraction: cfg.Retry.JitterFraction,
		},
		HTTPTimeout:       cfg.API.HTTPTimeout,
		ChunkSize:         cfg.Upload.ChunkSize,
		SingleShotLimit:   cfg.Upload.SingleShotLimit,
		MaxFileSize:       cfg.Upload.MaxFileSize,
		AllowedExtensions: cfg.Upload.AllowedExtensions,
		RateLimit:         cfg.RateLimit.RequestsPerSecond,
		RateBurst:         cfg.RateLimit.Burst,
		CacheTTL:          cfg.Cache.TTL,
		DefaultRoot:       cfg.Upload.DefaultRoot,
		Metrics:           metrics.NewStorageMetrics(),
	}

	// Interface-typed fields must stay nil when the subsystem is disabled; a
	// typed nil pointer would pass the nil checks inside the client.
	if jnl != nil {
		clientCfg.Journal = jnl
	}
	if arc != nil {
		clientCfg.Archiver = arc
	}

	return storage.NewClient(clientCfg)
}
