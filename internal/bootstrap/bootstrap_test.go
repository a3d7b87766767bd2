package bootstrap

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/pithecene-io/recap/internal/config"
	"github.com/pithecene-io/recap/recap"
	"github.com/pithecene-io/recap/recap/s3"
)

func loadConfig(t *testing.T, content string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recap.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Str("url", "/data").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %s", out)
	}
	if !strings.Contains(out, `"url":"/data"`) || !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("output = %s", out)
	}
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "", Format: "json"}, &buf)

	logger.Debug().Msg("debug")
	logger.Info().Msg("info")

	if strings.Contains(buf.String(), `"message":"debug"`) || !strings.Contains(buf.String(), `"message":"info"`) {
		t.Errorf("output = %s", buf.String())
	}
}

func TestNewClient_Local(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "data"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "data", "events.jsonl"), []byte("{\"a\":1}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := loadConfig(t, "local:\n  root: "+root+"\n")
	client, err := NewClient(cfg, NewLogger(cfg.Logging, &bytes.Buffer{}))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	got, err := client.Ls(t.Context(), "/data")
	if err != nil {
		t.Fatalf("Ls() error = %v", err)
	}
	if !slices.Equal(got, []string{"file:///data/events.jsonl"}) {
		t.Errorf("Ls() = %v", got)
	}
	if _, err := client.Schema(t.Context(), "file:///data/events.jsonl"); err != nil {
		t.Errorf("Schema() error = %v", err)
	}
}

func TestNewClient_MissingLocalRoot(t *testing.T) {
	cfg := loadConfig(t, "local:\n  root: "+filepath.Join(t.TempDir(), "missing")+"\n")
	client, err := NewClient(cfg, NewLogger(cfg.Logging, &bytes.Buffer{}))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.Ls(t.Context(), "/")
	if err == nil || !strings.Contains(err.Error(), "local root") {
		t.Errorf("Ls() error = %v, want local root error", err)
	}
}

func TestNewClient_Schemes(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"default", "", []string{"file"}},
		{"local disabled", "local:\n  enabled: false\n", nil},
		{"s3", "s3:\n  enabled: true\n  endpoint: http://localhost:4566\n", []string{"file", "s3"}},
		{"all", "s3:\n  enabled: true\ngcs:\n  enabled: true\n  access_key_id: k\n  secret_access_key: s\n", []string{"file", "gs", "s3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadConfig(t, tt.content)
			client, err := NewClient(cfg, NewLogger(cfg.Logging, &bytes.Buffer{}))
			if err != nil {
				t.Fatalf("NewClient() error = %v", err)
			}
			if got := client.Schemes(); !slices.Equal(got, tt.want) {
				t.Errorf("Schemes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewClient_DisabledScheme(t *testing.T) {
	cfg := loadConfig(t, "")
	client, err := NewClient(cfg, NewLogger(cfg.Logging, &bytes.Buffer{}))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.Ls(t.Context(), "s3://bucket")
	if !errors.Is(err, recap.ErrNoStorage) {
		t.Errorf("Ls() error = %v, want ErrNoStorage", err)
	}
}

func TestS3ClientConfig_Provider(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantEndpoint string
		wantKey      string
		wantPath     bool
	}{
		{"aws", "s3:\n  enabled: true\n", "", "", false},
		{"minio", "s3:\n  enabled: true\n  provider: minio\n", "http://localhost:9000", "minioadmin", true},
		{"localstack", "s3:\n  enabled: true\n  provider: localstack\n", "http://localhost:4566", "test", true},
		{
			"minio with overrides",
			"s3:\n  provider: minio\n  endpoint: http://minio:9000\n  access_key_id: ak\n  secret_access_key: sk\n",
			"http://minio:9000", "ak", true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cc := s3ClientConfig(loadConfig(t, tt.content).S3)
			if cc.Endpoint != tt.wantEndpoint || cc.UsePathStyle != tt.wantPath {
				t.Errorf("s3ClientConfig() = endpoint %q path style %v, want %q %v", cc.Endpoint, cc.UsePathStyle, tt.wantEndpoint, tt.wantPath)
			}
			if tt.wantKey == "" {
				if cc.Credentials != nil {
					t.Error("Credentials set, want default chain")
				}
				return
			}
			creds, err := cc.Credentials.Retrieve(t.Context())
			if err != nil {
				t.Fatalf("Retrieve() error = %v", err)
			}
			if creds.AccessKeyID != tt.wantKey {
				t.Errorf("AccessKeyID = %q, want %q", creds.AccessKeyID, tt.wantKey)
			}
		})
	}
}

func TestNewStore(t *testing.T) {
	if _, err := newStore(nil); err == nil {
		t.Error("expected error for nil client")
	}
	fs, err := newStore(s3.NewMockS3Client())
	if err != nil {
		t.Fatalf("newStore() error = %v", err)
	}
	if _, ok := fs.(*s3.Store); !ok {
		t.Errorf("newStore() = %T, want *s3.Store", fs)
	}
}
