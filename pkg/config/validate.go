package config

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rhuss/missive/pkg/transport"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	switch c.Server.Environment {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		errs = append(errs, fmt.Errorf("server.environment must be \"development\", \"production\", or \"test\", got %q", c.Server.Environment))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}
	if _, err := transport.NewTrustedProxies(c.Server.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("server.trusted_proxies: %w", err))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout must be > 0, got %v", c.Server.ShutdownTimeout))
	}

	switch c.Auth.Type {
	case "jwt":
		if c.Auth.JWT.Secret == "" && c.Auth.JWT.SecretFile == "" {
			errs = append(errs, fmt.Errorf("auth.jwt.secret or auth.jwt.secret_file is required when auth.type is \"jwt\""))
		}
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			errs = append(errs, fmt.Errorf("auth.api_keys must not be empty when auth.type is \"apikey\""))
		}
		for i, k := range c.Auth.APIKeys {
			if k.Key == "" && k.KeyFile == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d]: key or key_file is required", i))
			}
			if _, err := uuid.Parse(k.Subject); err != nil || len(k.Subject) != 36 {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d].subject must be a UUID, got %q", i, k.Subject))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"jwt\" or \"apikey\", got %q", c.Auth.Type))
	}

	switch c.Storage.Type {
	case "memory":
	case "postgres", "gorm":
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is %q", c.Storage.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\", \"postgres\", or \"gorm\", got %q", c.Storage.Type))
	}

	switch c.Blob.Type {
	case "filesystem":
		if c.Blob.Path == "" {
			errs = append(errs, fmt.Errorf("blob.path is required when blob.type is \"filesystem\""))
		}
	case "minio":
		if c.Blob.Minio.Endpoint == "" || c.Blob.Minio.Bucket == "" {
			errs = append(errs, fmt.Errorf("blob.minio.endpoint and blob.minio.bucket are required when blob.type is \"minio\""))
		}
	case "s3":
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, fmt.Errorf("blob.s3.bucket is required when blob.type is \"s3\""))
		}
	default:
		errs = append(errs, fmt.Errorf("blob.type must be \"filesystem\", \"minio\", or \"s3\", got %q", c.Blob.Type))
	}
	if c.Blob.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("blob.max_file_size must be > 0, got %d", c.Blob.MaxFileSize))
	}
	if len(c.Blob.AllowedContentTypes) == 0 {
		errs = append(errs, fmt.Errorf("blob.allowed_content_types must not be empty"))
	}

	switch c.RateLimit.Type {
	case "none":
	case "memory", "redis":
		if c.RateLimit.Attempts <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit.attempts must be > 0, got %d", c.RateLimit.Attempts))
		}
		if c.RateLimit.Window <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit.window must be > 0, got %v", c.RateLimit.Window))
		}
		if c.RateLimit.Type == "redis" && c.RateLimit.Redis.Addr == "" {
			errs = append(errs, fmt.Errorf("rate_limit.redis.addr is required when rate_limit.type is \"redis\""))
		}
	default:
		errs = append(errs, fmt.Errorf("rate_limit.type must be \"none\", \"memory\", or \"redis\", got %q", c.RateLimit.Type))
	}

	if m := c.Observability.Metrics; m.Enabled {
		if m.Path == "" || m.Path[0] != '/' {
			errs = append(errs, fmt.Errorf("observability.metrics.path must start with \"/\", got %q", m.Path))
		}
		if m.Port < 0 || m.Port > 65535 {
			errs = append(errs, fmt.Errorf("observability.metrics.port must be between 0 and 65535, got %d", m.Port))
		}
		if m.Port != 0 && m.Port == c.Server.Port {
			errs = append(errs, fmt.Errorf("observability.metrics.port must differ from server.port"))
		}
	}

	return errors.Join(errs...)
}
