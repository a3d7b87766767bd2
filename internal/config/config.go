// Package config loads recap's runtime configuration.
//
// Configuration comes from an optional YAML file with ${VAR} expansion,
// then RECAP_* environment variables, then defaults. Dotenv files are
// loaded into the environment first and never override variables that
// are already set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Local   LocalConfig   `yaml:"local"`
	S3      S3Config      `yaml:"s3"`
	GCS     GCSConfig     `yaml:"gcs"`
	Infer   InferConfig   `yaml:"infer"`
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// LocalConfig configures the file scheme.
type LocalConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Root    string `yaml:"root"` // file:///x resolves to Root/x
}

// S3Config configures the s3 scheme.
type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Provider        string `yaml:"provider"` // aws, minio or localstack
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
}

// GCSConfig configures the gs scheme through the XML interoperability
// endpoint with HMAC keys.
type GCSConfig struct {
	Enabled         bool   `yaml:"enabled"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
}

// InferConfig tunes schema inference.
type InferConfig struct {
	SampleRows    int `yaml:"sample_rows"`
	MaxRecordSize int `yaml:"max_record_size"`
}

// LocalEnabled reports whether the file scheme is served. It is on unless
// explicitly disabled.
func (c *Config) LocalEnabled() bool {
	return c.Local.Enabled == nil || *c.Local.Enabled
}

// Load reads configuration from a YAML file. An empty path skips the file
// and uses environment variables and defaults only.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		data = []byte(os.ExpandEnv(string(data)))

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback loads path when it exists and falls back to
// environment-only configuration otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return Load("")
}

// LoadDotEnv loads the given dotenv files into the process environment.
// Missing files are skipped. Variables already set are left untouched.
func LoadDotEnv(filenames ...string) error {
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// applyEnvOverrides applies RECAP_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) error {
	// Server configuration
	if v := os.Getenv("RECAP_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("RECAP_SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RECAP_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("RECAP_SERVER_READ_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("RECAP_SERVER_READ_TIMEOUT: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}
	if v := os.Getenv("RECAP_SERVER_WRITE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("RECAP_SERVER_WRITE_TIMEOUT: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	// Logging configuration
	if v := os.Getenv("RECAP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RECAP_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Local filesystem
	if v := os.Getenv("RECAP_LOCAL_ENABLED"); v != "" {
		enabled := parseBool(v)
		cfg.Local.Enabled = &enabled
	}
	if v := os.Getenv("RECAP_LOCAL_ROOT"); v != "" {
		cfg.Local.Root = v
	}

	// S3
	if v := os.Getenv("RECAP_S3_ENABLED"); v != "" {
		cfg.S3.Enabled = parseBool(v)
	}
	if v := os.Getenv("RECAP_S3_PROVIDER"); v != "" {
		cfg.S3.Provider = v
	}
	if v := os.Getenv("RECAP_S3_REGION"); v != "" {
		cfg.S3.Region = v
	}
	if v := os.Getenv("RECAP_S3_ENDPOINT"); v != "" {
		cfg.S3.Endpoint = v
	}
	if v := os.Getenv("RECAP_S3_USE_PATH_STYLE"); v != "" {
		cfg.S3.UsePathStyle = parseBool(v)
	}
	if v := os.Getenv("RECAP_S3_ACCESS_KEY_ID"); v != "" {
		cfg.S3.AccessKeyID = v
	}
	if v := os.Getenv("RECAP_S3_SECRET_ACCESS_KEY"); v != "" {
		cfg.S3.SecretAccessKey = v
	}

	// GCS
	if v := os.Getenv("RECAP_GCS_ENABLED"); v != "" {
		cfg.GCS.Enabled = parseBool(v)
	}
	if v := os.Getenv("RECAP_GCS_ACCESS_KEY_ID"); v != "" {
		cfg.GCS.AccessKeyID = v
	}
	if v := os.Getenv("RECAP_GCS_SECRET_ACCESS_KEY"); v != "" {
		cfg.GCS.SecretAccessKey = v
	}

	// Inference
	if v := os.Getenv("RECAP_INFER_SAMPLE_ROWS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RECAP_INFER_SAMPLE_ROWS: %w", err)
		}
		cfg.Infer.SampleRows = n
	}
	if v := os.Getenv("RECAP_INFER_MAX_RECORD_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RECAP_INFER_MAX_RECORD_SIZE: %w", err)
		}
		cfg.Infer.MaxRecordSize = n
	}
	return nil
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 5 * time.Minute
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Local.Root == "" {
		cfg.Local.Root = "/"
	}

	if cfg.S3.Provider == "" {
		cfg.S3.Provider = "aws"
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = "us-east-1"
	}

	if cfg.Infer.SampleRows == 0 {
		cfg.Infer.SampleRows = 100
	}
	if cfg.Infer.MaxRecordSize == 0 {
		cfg.Infer.MaxRecordSize = 10 << 20
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", cfg.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, got %q", cfg.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	validProviders := map[string]bool{"aws": true, "minio": true, "localstack": true}
	if !validProviders[cfg.S3.Provider] {
		return fmt.Errorf("s3.provider must be one of: aws, minio, localstack, got %q", cfg.S3.Provider)
	}
	if (cfg.S3.AccessKeyID == "") != (cfg.S3.SecretAccessKey == "") {
		return fmt.Errorf("s3.access_key_id and s3.secret_access_key must be set together")
	}
	if cfg.GCS.Enabled && (cfg.GCS.AccessKeyID == "" || cfg.GCS.SecretAccessKey == "") {
		return fmt.Errorf("gcs.access_key_id and gcs.secret_access_key are required when gcs is enabled")
	}

	if cfg.Infer.SampleRows < 0 {
		return fmt.Errorf("infer.sample_rows must be positive, got %d", cfg.Infer.SampleRows)
	}
	if cfg.Infer.MaxRecordSize < 0 {
		return fmt.Errorf("infer.max_record_size must be positive, got %d", cfg.Infer.MaxRecordSize)
	}

	return nil
}
