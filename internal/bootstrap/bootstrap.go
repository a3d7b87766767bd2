// Package bootstrap wires configuration into a logger and a recap client.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/rs/zerolog"

	"github.com/pithecene-io/recap/internal/config"
	"github.com/pithecene-io/recap/recap"
	"github.com/pithecene-io/recap/recap/infer"
	"github.com/pithecene-io/recap/recap/s3"
	"github.com/pithecene-io/recap/recap/storage"
)

// NewLogger builds a logger writing to w. Unknown levels fall back to info.
func NewLogger(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// NewClient builds a client serving the schemes enabled in cfg. Storage
// handles are created on first use, so an unreachable backend only fails
// the requests that need it.
func NewClient(cfg *config.Config, logger zerolog.Logger) (*recap.Client, error) {
	opts := []recap.Option{
		recap.WithLogger(logger),
		recap.WithProber(infer.NewTabularProber(infer.WithSampleRows(cfg.Infer.SampleRows))),
		recap.WithStreamingAdapter(infer.NewStreamingAdapter(infer.WithMaxRecordSize(cfg.Infer.MaxRecordSize))),
	}

	if cfg.LocalEnabled() {
		root := cfg.Local.Root
		opts = append(opts, recap.WithStorageFactory("file", func(context.Context) (storage.FS, error) {
			fs, err := storage.NewLocal(root)
			if err != nil {
				return nil, fmt.Errorf("local root: %w", err)
			}
			logger.Debug().Str("root", fs.Root()).Msg("local storage ready")
			return fs, nil
		}))
	}

	if cfg.S3.Enabled {
		s3cfg := cfg.S3
		opts = append(opts, recap.WithStorageFactory("s3", func(ctx context.Context) (storage.FS, error) {
			cc := s3ClientConfig(s3cfg)
			client, err := s3.NewClient(ctx, cc)
			if err != nil {
				return nil, fmt.Errorf("s3 client: %w", err)
			}
			logger.Debug().
				Str("provider", s3cfg.Provider).
				Str("region", cc.Region).
				Str("endpoint", cc.Endpoint).
				Msg("s3 storage ready")
			return newStore(client)
		}))
	}

	if cfg.GCS.Enabled {
		gcs := cfg.GCS
		opts = append(opts, recap.WithStorageFactory("gs", func(ctx context.Context) (storage.FS, error) {
			client, err := s3.NewGCSClient(ctx, gcs.AccessKeyID, gcs.SecretAccessKey)
			if err != nil {
				return nil, fmt.Errorf("gcs client: %w", err)
			}
			logger.Debug().Msg("gcs storage ready")
			return newStore(client)
		}))
	}

	client, err := recap.New(opts...)
	if err != nil {
		return nil, err
	}
	logger.Debug().Strs("schemes", client.Schemes()).Msg("client configured")
	return client, nil
}

// s3ClientConfig maps the s3 section onto client settings, filling what it
// leaves unset from the provider's defaults.
func s3ClientConfig(c config.S3Config) s3.ClientConfig {
	cc := s3.ClientConfig{
		Region:       c.Region,
		Endpoint:     c.Endpoint,
		UsePathStyle: c.UsePathStyle,
	}
	if c.AccessKeyID != "" {
		cc.Credentials = credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, "")
	}
	return cc.WithProvider(s3.Provider(c.Provider))
}

func newStore(client s3.API) (storage.FS, error) {
	store, err := s3.New(client)
	if err != nil {
		return nil, err
	}
	return store, nil
}
