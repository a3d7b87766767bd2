package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pithecene-io/recap/internal/bootstrap"
	"github.com/pithecene-io/recap/internal/config"
	"github.com/pithecene-io/recap/recap"
)

// cli holds state shared by the subcommands.
type cli struct {
	cfgFile   string
	envFile   string
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger zerolog.Logger
	client *recap.Client
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "recap",
		Short: "List data locations and describe their schemas",
		Long: `recap lists the children of a location and infers a canonical schema
for the data files it finds there.

Locations are URLs or bare absolute paths:
  recap ls /data
  recap ls s3://bucket/dir
  recap schema gs://bucket/events.jsonl.gz
  recap schema file:///data/people.csv --dialect tableschema

Storage backends are configured in recap.yaml (or --config) and RECAP_*
environment variables. The local filesystem is enabled by default.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	root.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", "recap.yaml", "config file path")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before the config")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "", "log format: console or json")

	root.AddCommand(
		newLsCmd(c),
		newSchemaCmd(c),
		newServeCmd(c),
	)
	return root
}

// setup loads configuration and builds the logger and client.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(c.envFile); err != nil {
		return err
	}

	cfg, err := config.LoadWithFallback(c.cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.logLevel != "" {
		if _, err := zerolog.ParseLevel(c.logLevel); err != nil {
			return fmt.Errorf("--log-level: %w", err)
		}
		cfg.Logging.Level = c.logLevel
	}
	if c.logFormat != "" {
		if c.logFormat != "console" && c.logFormat != "json" {
			return fmt.Errorf("--log-format must be 'console' or 'json', got %q", c.logFormat)
		}
		cfg.Logging.Format = c.logFormat
	}
	c.cfg = cfg
	c.logger = bootstrap.NewLogger(cfg.Logging, cmd.ErrOrStderr())

	client, err := bootstrap.NewClient(cfg, c.logger)
	if err != nil {
		return fmt.Errorf("init client: %w", err)
	}
	c.client = client
	return nil
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "recap: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes caller mistakes from backend failures.
func exitCode(err error) int {
	switch recap.Classify(err) {
	case recap.ClassBackend:
		return 1
	default:
		return 2
	}
}
