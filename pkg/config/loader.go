package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/missive/pkg/debug"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, MISSIVE_CONFIG env, ./config.yaml, /etc/missive/config.yaml)
//  3. Legacy environment variables (PORT, NODE_ENV, AUTH_GATEWAY_JWT_SECRET, ...)
//  4. MISSIVE_* environment variables
//  5. File reference resolution (_file suffix)
//  6. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "loaded config file", "path", filePath)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. MISSIVE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/missive/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("MISSIVE_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/missive/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// envReader applies environment variables to config fields and collects
// parse failures so that all of them are reported at once.
type envReader struct {
	errs []error
}

func (e *envReader) str(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func (e *envReader) list(name string, dst *[]string) {
	if v := os.Getenv(name); v != "" {
		*dst = splitList(v)
	}
}

func (e *envReader) integer(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", name, v))
			return
		}
		*dst = n
	}
}

func (e *envReader) size(name string, dst *int64) {
	if v := os.Getenv(name); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", name, v))
			return
		}
		*dst = n
	}
}

func (e *envReader) boolean(name string, dst *bool) {
	if v := os.Getenv(name); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", name, v))
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(name string, dst *time.Duration) {
	if v := os.Getenv(name); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %q is not a duration", name, v))
			return
		}
		*dst = d
	}
}

// applyEnvOverrides maps environment variables to config fields. The
// variable names of the gateway deployment are applied first, so
// the structured MISSIVE_* names win when both are set.
func applyEnvOverrides(cfg *Config) error {
	e := &envReader{}

	// Legacy names.
	e.integer("PORT", &cfg.Server.Port)
	e.str("NODE_ENV", &cfg.Server.Environment)
	e.str("AUTH_GATEWAY_JWT_SECRET", &cfg.Auth.JWT.Secret)
	e.str("AUTH_GATEWAY_JWT_HEADER", &cfg.Auth.Header)
	e.list("CORS_ORIGIN", &cfg.CORS.Origins)
	e.list("CORS_METHODS", &cfg.CORS.Methods)
	e.boolean("CORS_CREDENTIALS", &cfg.CORS.Credentials)
	e.str("STORAGE_PATH", &cfg.Blob.Path)
	e.size("STORAGE_MAX_FILE_SIZE", &cfg.Blob.MaxFileSize)
	e.list("STORAGE_ALLOWED_FILE_TYPES", &cfg.Blob.AllowedContentTypes)

	// Structured names.
	e.integer("MISSIVE_PORT", &cfg.Server.Port)
	e.str("MISSIVE_ENVIRONMENT", &cfg.Server.Environment)
	e.size("MISSIVE_MAX_BODY_SIZE", &cfg.Server.MaxBodySize)
	e.list("MISSIVE_TRUSTED_PROXIES", &cfg.Server.TrustedProxies)

	e.list("MISSIVE_CORS_ORIGINS", &cfg.CORS.Origins)

	e.str("MISSIVE_AUTH_TYPE", &cfg.Auth.Type)
	e.str("MISSIVE_AUTH_HEADER", &cfg.Auth.Header)
	e.str("MISSIVE_JWT_SECRET", &cfg.Auth.JWT.Secret)
	e.str("MISSIVE_JWT_SECRET_FILE", &cfg.Auth.JWT.SecretFile)
	e.str("MISSIVE_JWT_ISSUER", &cfg.Auth.JWT.Issuer)
	e.str("MISSIVE_JWT_AUDIENCE", &cfg.Auth.JWT.Audience)

	// MISSIVE_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("MISSIVE_API_KEYS"); v != "" {
		keys, err := parseAPIKeysJSON(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("MISSIVE_API_KEYS: %w", err))
		} else if len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}

	e.str("MISSIVE_STORAGE", &cfg.Storage.Type)
	e.str("MISSIVE_POSTGRES_DSN", &cfg.Storage.Postgres.DSN)
	e.str("MISSIVE_POSTGRES_DSN_FILE", &cfg.Storage.Postgres.DSNFile)
	e.boolean("MISSIVE_POSTGRES_MIGRATE", &cfg.Storage.Postgres.MigrateOnStart)

	e.str("MISSIVE_BLOB", &cfg.Blob.Type)
	e.str("MISSIVE_BLOB_PATH", &cfg.Blob.Path)
	e.size("MISSIVE_BLOB_MAX_FILE_SIZE", &cfg.Blob.MaxFileSize)
	e.str("MISSIVE_MINIO_ENDPOINT", &cfg.Blob.Minio.Endpoint)
	e.str("MISSIVE_MINIO_ACCESS_KEY", &cfg.Blob.Minio.AccessKey)
	e.str("MISSIVE_MINIO_SECRET_KEY", &cfg.Blob.Minio.SecretKey)
	e.str("MISSIVE_MINIO_BUCKET", &cfg.Blob.Minio.Bucket)
	e.boolean("MISSIVE_MINIO_USE_SSL", &cfg.Blob.Minio.UseSSL)
	e.str("MISSIVE_S3_ENDPOINT", &cfg.Blob.S3.Endpoint)
	e.str("MISSIVE_S3_REGION", &cfg.Blob.S3.Region)
	e.str("MISSIVE_S3_ACCESS_KEY", &cfg.Blob.S3.AccessKey)
	e.str("MISSIVE_S3_SECRET_KEY", &cfg.Blob.S3.SecretKey)
	e.str("MISSIVE_S3_BUCKET", &cfg.Blob.S3.Bucket)

	e.str("MISSIVE_RATE_LIMIT", &cfg.RateLimit.Type)
	e.integer("MISSIVE_RATE_LIMIT_ATTEMPTS", &cfg.RateLimit.Attempts)
	e.duration("MISSIVE_RATE_LIMIT_WINDOW", &cfg.RateLimit.Window)
	e.str("MISSIVE_REDIS_ADDR", &cfg.RateLimit.Redis.Addr)
	e.str("MISSIVE_REDIS_PASSWORD", &cfg.RateLimit.Redis.Password)

	e.boolean("MISSIVE_METRICS_ENABLED", &cfg.Observability.Metrics.Enabled)
	e.integer("MISSIVE_METRICS_PORT", &cfg.Observability.Metrics.Port)

	return errors.Join(e.errs...)
}

// splitList splits a comma separated value, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(jsonStr), &keys); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	return keys, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	refs := []struct {
		name  string
		file  string
		value *string
	}{
		{"auth.jwt.secret_file", cfg.Auth.JWT.SecretFile, &cfg.Auth.JWT.Secret},
		{"storage.postgres.dsn_file", cfg.Storage.Postgres.DSNFile, &cfg.Storage.Postgres.DSN},
		{"blob.minio.secret_key_file", cfg.Blob.Minio.SecretKeyFile, &cfg.Blob.Minio.SecretKey},
		{"blob.s3.secret_key_file", cfg.Blob.S3.SecretKeyFile, &cfg.Blob.S3.SecretKey},
		{"rate_limit.redis.password_file", cfg.RateLimit.Redis.PasswordFile, &cfg.RateLimit.Redis.Password},
	}
	for _, ref := range refs {
		if ref.file == "" || *ref.value != "" {
			continue
		}
		val, err := readSecretFile(ref.file)
		if err != nil {
			return fmt.Errorf("%s: %w", ref.name, err)
		}
		*ref.value = val
	}

	// auth.api_keys[*].key_file -> auth.api_keys[*].key
	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
