package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Declarative checks live in struct tags; rules spanning multiple fields are
// checked here. Log level normalization is handled in ApplyDefaults, so both
// cases are accepted by the tag.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

// validateCustomRules performs validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if cfg.Auth.TenantID == "" && cfg.Auth.TokenURL == "" {
		return fmt.Errorf("auth: either tenant_id or token_url must be set")
	}

	if cfg.Upload.SingleShotLimit > cfg.Upload.ChunkSize {
		return fmt.Errorf("upload: single_shot_limit (%d) must not exceed chunk_size (%d)",
			cfg.Upload.SingleShotLimit, cfg.Upload.ChunkSize)
	}

	if cfg.Upload.MaxFileSize > 0 && cfg.Upload.MaxFileSize < cfg.Upload.SingleShotLimit {
		return fmt.Errorf("upload: max_file_size (%d) is smaller than single_shot_limit (%d)",
			cfg.Upload.MaxFileSize, cfg.Upload.SingleShotLimit)
	}

	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		return fmt.Errorf("journal: path is required when the journal is enabled")
	}

	if cfg.Archive.Enabled {
		if bucket, _ := cfg.Archive.S3["bucket"].(string); bucket == "" {
			return fmt.Errorf("archive: s3.bucket is required when the archive is enabled")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
