package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rhuss/missive/pkg/auth"
	"github.com/rhuss/missive/pkg/auth/apikey"
	"github.com/rhuss/missive/pkg/auth/jwt"
	"github.com/rhuss/missive/pkg/auth/redislimit"
	"github.com/rhuss/missive/pkg/blob"
	"github.com/rhuss/missive/pkg/blob/filesystem"
	"github.com/rhuss/missive/pkg/blob/minio"
	"github.com/rhuss/missive/pkg/blob/s3"
	"github.com/rhuss/missive/pkg/config"
	"github.com/rhuss/missive/pkg/storage"
	"github.com/rhuss/missive/pkg/storage/gormstore"
	"github.com/rhuss/missive/pkg/storage/memory"
	"github.com/rhuss/missive/pkg/storage/postgres"
	"github.com/rhuss/missive/pkg/transport"
)

func buildStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(), nil
	case "postgres":
		return postgres.New(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
			MigrateOnStart:  cfg.Postgres.MigrateOnStart,
		})
	case "gorm":
		return gormstore.New(cfg.Postgres.DSN)
	}
	return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
}

func buildBlobs(ctx context.Context, cfg config.BlobConfig) (blob.Store, error) {
	switch cfg.Type {
	case "filesystem":
		return filesystem.New(cfg.Path)
	case "minio":
		return minio.New(ctx, minio.Config{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		})
	case "s3":
		return s3.New(ctx, s3.Config{
			Endpoint:     cfg.S3.Endpoint,
			Region:       cfg.S3.Region,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			Bucket:       cfg.S3.Bucket,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
	}
	return nil, fmt.Errorf("unknown blob type %q", cfg.Type)
}

// limiter is a password attempt limiter with a lifecycle.
type limiter interface {
	auth.RateLimiter
	transport.HealthChecker
	Close() error
}

// localLimiter adapts in-process limiters, which have nothing to check or
// release.
type localLimiter struct {
	auth.RateLimiter
}

func (localLimiter) HealthCheck(context.Context) error { return nil }
func (localLimiter) Close() error                      { return nil }

func buildLimiter(cfg config.RateLimitConfig) (limiter, error) {
	switch cfg.Type {
	case "none":
		return localLimiter{auth.NoLimit{}}, nil
	case "memory":
		return localLimiter{auth.NewInProcessLimiter(cfg.Attempts, cfg.Window)}, nil
	case "redis":
		return redislimit.New(redislimit.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			Prefix:   cfg.Redis.Prefix,
			Limit:    cfg.Attempts,
			Window:   cfg.Window,
		})
	}
	return nil, fmt.Errorf("unknown rate limit type %q", cfg.Type)
}

func buildAuthChain(cfg config.AuthConfig) (*auth.AuthChain, error) {
	var authn auth.Authenticator
	switch cfg.Type {
	case "jwt":
		a, err := jwt.New(jwt.Config{
			Secret:   []byte(cfg.JWT.Secret),
			Header:   cfg.Header,
			Issuer:   cfg.JWT.Issuer,
			Audience: cfg.JWT.Audience,
		})
		if err != nil {
			return nil, err
		}
		authn = a
	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			entries = append(entries, apikey.RawKeyEntry{Key: k.Key, Subject: k.Subject})
		}
		a, err := apikey.New(cfg.Header, entries)
		if err != nil {
			return nil, err
		}
		authn = a
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}
	return &auth.AuthChain{Authenticators: []auth.Authenticator{authn}}, nil
}

// healthChecks reports ready only when every backend does.
type healthChecks []transport.HealthChecker

func (h healthChecks) HealthCheck(ctx context.Context) error {
	var errs []error
	for _, c := range h {
		if err := c.HealthCheck(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
