// Package config provides unified configuration for the missive service.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (MISSIVE_ prefix)
//  4. Legacy variable names of the gateway deployment
//  5. File reference resolution (_file suffix fields)
//  6. Validation
package config

import "time"

// Environments recognized by server.environment.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config holds all configuration for the missive service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	CORS          CORSConfig          `yaml:"cors"`
	Auth          AuthConfig          `yaml:"auth"`
	Storage       StorageConfig       `yaml:"storage"`
	Blob          BlobConfig          `yaml:"blob"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 3000
	Environment     string        `yaml:"environment"`      // development, production or test
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 60s
	IdleTimeout     time.Duration `yaml:"idle_timeout"`     // default: 120s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
	MaxBodySize     int64         `yaml:"max_body_size"`    // JSON bodies, default: 1 MiB

	// TrustedProxies are CIDR ranges or addresses of reverse proxies whose
	// X-Forwarded-For header is believed. Empty trusts no proxy.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// Development reports whether the service runs in development mode.
func (s ServerConfig) Development() bool {
	return s.Environment == EnvDevelopment
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	Origins     []string `yaml:"origins"`
	Methods     []string `yaml:"methods"`
	Credentials bool     `yaml:"credentials"`
}

// AuthConfig holds settings for resolving the caller identity.
type AuthConfig struct {
	Type    string         `yaml:"type"`   // "jwt" or "apikey", default: "jwt"
	Header  string         `yaml:"header"` // default: "x-gateway-jwt"
	JWT     JWTConfig      `yaml:"jwt"`
	APIKeys []APIKeyConfig `yaml:"api_keys"`
}

// JWTConfig holds gateway token settings.
type JWTConfig struct {
	Secret     string `yaml:"secret"`
	SecretFile string `yaml:"secret_file"` // _file variant for secret
	Issuer     string `yaml:"issuer"`
	Audience   string `yaml:"audience"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key     string `yaml:"key"`
	KeyFile string `yaml:"key_file"` // _file variant for key
	Subject string `yaml:"subject"`  // identity UUID
}

// StorageConfig selects the relational store.
type StorageConfig struct {
	Type     string         `yaml:"type"` // "memory", "postgres" or "gorm", default: "memory"
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL settings shared by the postgres and gorm
// stores.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	DSNFile         string        `yaml:"dsn_file"`  // _file variant for dsn
	MaxConns        int32         `yaml:"max_conns"` // default: 10
	MinConns        int32         `yaml:"min_conns"` // default: 2
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MigrateOnStart  bool          `yaml:"migrate_on_start"`
}

// BlobConfig selects the attachment store and upload limits.
type BlobConfig struct {
	Type                string      `yaml:"type"` // "filesystem", "minio" or "s3"
	Path                string      `yaml:"path"` // filesystem root, default: "/storage"
	MaxFileSize         int64       `yaml:"max_file_size"`
	AllowedContentTypes []string    `yaml:"allowed_content_types"`
	Minio               MinioConfig `yaml:"minio"`
	S3                  S3Config    `yaml:"s3"`
}

// MinioConfig holds MinIO connection settings.
type MinioConfig struct {
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	SecretKeyFile string `yaml:"secret_key_file"`
	Bucket        string `yaml:"bucket"`
	UseSSL        bool   `yaml:"use_ssl"`
}

// S3Config holds S3 connection settings. An empty endpoint uses AWS.
type S3Config struct {
	Endpoint      string `yaml:"endpoint"`
	Region        string `yaml:"region"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	SecretKeyFile string `yaml:"secret_key_file"`
	Bucket        string `yaml:"bucket"`
	UsePathStyle  bool   `yaml:"use_path_style"`
}

// RateLimitConfig bounds password attempts per message.
type RateLimitConfig struct {
	Type     string        `yaml:"type"`     // "none", "memory" or "redis", default: "memory"
	Attempts int           `yaml:"attempts"` // default: 10
	Window   time.Duration `yaml:"window"`   // default: 1m
	Redis    RedisConfig   `yaml:"redis"`
}

// RedisConfig holds the shared limiter backend settings.
type RedisConfig struct {
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"password_file"`
	Prefix       string `yaml:"prefix"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
	Port    int    `yaml:"port"`    // 0 serves metrics on the API port
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            3000,
			Environment:     EnvProduction,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodySize:     1 << 20,
		},
		CORS: CORSConfig{
			Origins:     []string{"http://localhost:3000"},
			Methods:     []string{"GET", "HEAD", "PUT", "PATCH", "POST", "DELETE"},
			Credentials: true,
		},
		Auth: AuthConfig{
			Type:   "jwt",
			Header: "x-gateway-jwt",
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns:        10,
				MinConns:        2,
				MaxConnLifetime: 5 * time.Minute,
			},
		},
		Blob: BlobConfig{
			Type:                "filesystem",
			Path:                "/storage",
			MaxFileSize:         10485760,
			AllowedContentTypes: []string{"image/jpeg", "image/png"},
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		RateLimit: RateLimitConfig{
			Type:     "memory",
			Attempts: 10,
			Window:   time.Minute,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
