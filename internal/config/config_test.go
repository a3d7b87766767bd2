package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/recap/internal/config"
)

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recap.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return cfg
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
server:
  host: "0.0.0.0"
  port: 9090
  read_timeout: 5s

logging:
  level: debug
  format: json

local:
  root: /srv/data

s3:
  enabled: true
  region: eu-west-1
  endpoint: http://localhost:4566
  use_path_style: true

infer:
  sample_rows: 500
`

	cfg := writeAndLoad(t, content)

	if cfg.Server.Addr() != "0.0.0.0:9090" {
		t.Errorf("Addr() = %s, want 0.0.0.0:9090", cfg.Server.Addr())
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Local.Root != "/srv/data" || !cfg.LocalEnabled() {
		t.Errorf("Local = %+v", cfg.Local)
	}
	if !cfg.S3.Enabled || cfg.S3.Region != "eu-west-1" || !cfg.S3.UsePathStyle {
		t.Errorf("S3 = %+v", cfg.S3)
	}
	if cfg.Infer.SampleRows != 500 {
		t.Errorf("SampleRows = %d, want 500", cfg.Infer.SampleRows)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr() != "127.0.0.1:8080" {
		t.Errorf("default Addr() = %s", cfg.Server.Addr())
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Errorf("default Logging = %+v", cfg.Logging)
	}
	if cfg.Local.Root != "/" || !cfg.LocalEnabled() {
		t.Errorf("default Local = %+v", cfg.Local)
	}
	if cfg.S3.Enabled || cfg.GCS.Enabled {
		t.Error("object stores should be disabled by default")
	}
	if cfg.S3.Provider != "aws" {
		t.Errorf("default S3.Provider = %q, want aws", cfg.S3.Provider)
	}
	if cfg.Infer.SampleRows != 100 || cfg.Infer.MaxRecordSize != 10<<20 {
		t.Errorf("default Infer = %+v", cfg.Infer)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_GCS_KEY", "GOOG123")
	t.Setenv("TEST_GCS_SECRET", "s3cr3t")

	cfg := writeAndLoad(t, `
gcs:
  enabled: true
  access_key_id: ${TEST_GCS_KEY}
  secret_access_key: ${TEST_GCS_SECRET}
`)

	if cfg.GCS.AccessKeyID != "GOOG123" || cfg.GCS.SecretAccessKey != "s3cr3t" {
		t.Errorf("GCS = %+v", cfg.GCS)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RECAP_SERVER_PORT", "7000")
	t.Setenv("RECAP_LOG_LEVEL", "warn")
	t.Setenv("RECAP_LOCAL_ENABLED", "false")
	t.Setenv("RECAP_S3_ENABLED", "yes")
	t.Setenv("RECAP_S3_REGION", "ap-south-1")
	t.Setenv("RECAP_S3_PROVIDER", "minio")
	t.Setenv("RECAP_INFER_MAX_RECORD_SIZE", "1024")

	cfg := writeAndLoad(t, `
server:
  port: 9090
logging:
  level: debug
`)

	if cfg.Server.Port != 7000 {
		t.Errorf("Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %s, want warn", cfg.Logging.Level)
	}
	if cfg.LocalEnabled() {
		t.Error("LocalEnabled() = true, want false")
	}
	if !cfg.S3.Enabled || cfg.S3.Region != "ap-south-1" || cfg.S3.Provider != "minio" {
		t.Errorf("S3 = %+v", cfg.S3)
	}
	if cfg.Infer.MaxRecordSize != 1024 {
		t.Errorf("MaxRecordSize = %d, want 1024", cfg.Infer.MaxRecordSize)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		wantErr string
	}{
		{"bad level", "logging:\n  level: loud\n", nil, "logging.level"},
		{"bad format", "logging:\n  format: xml\n", nil, "logging.format"},
		{"bad port", "server:\n  port: 70000\n", nil, "server.port"},
		{"bad s3 provider", "s3:\n  provider: wasabi\n", nil, "s3.provider"},
		{"half s3 keys", "s3:\n  access_key_id: AKIA\n", nil, "s3.access_key_id"},
		{"gcs without keys", "gcs:\n  enabled: true\n", nil, "gcs.access_key_id"},
		{"negative sample", "infer:\n  sample_rows: -1\n", nil, "infer.sample_rows"},
		{"bad yaml", "server: [\n", nil, "parse config"},
		{"bad env port", "", map[string]string{"RECAP_SERVER_PORT": "http"}, "RECAP_SERVER_PORT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "recap.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := config.Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadWithFallback(t *testing.T) {
	t.Setenv("RECAP_SERVER_PORT", "8181")

	cfg, err := config.LoadWithFallback(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadWithFallback() error = %v", err)
	}
	if cfg.Server.Port != 8181 {
		t.Errorf("Port = %d, want 8181", cfg.Server.Port)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "RECAP_TEST_DOTENV_NEW=from-file\nRECAP_TEST_DOTENV_SET=from-file\n"
	if err := os.WriteFile(envFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RECAP_TEST_DOTENV_SET", "from-env")
	// Register cleanup for the variable the file introduces.
	t.Setenv("RECAP_TEST_DOTENV_NEW", "")
	if err := os.Unsetenv("RECAP_TEST_DOTENV_NEW"); err != nil {
		t.Fatal(err)
	}

	if err := config.LoadDotEnv(filepath.Join(dir, "missing.env"), envFile); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("RECAP_TEST_DOTENV_NEW"); got != "from-file" {
		t.Errorf("new variable = %q, want from-file", got)
	}
	if got := os.Getenv("RECAP_TEST_DOTENV_SET"); got != "from-env" {
		t.Errorf("existing variable = %q, want from-env", got)
	}
}
