package main

import (
	"fmt"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pithecene-io/recap/internal/server"
	"github.com/pithecene-io/recap/recap/convert"
)

func newLsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "ls URL",
		Short: "List the children of a location",
		Long: `List the immediate children of a location, one URL per line.

Examples:
  recap ls /data
  recap ls s3://bucket/dir
  recap ls s3://`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			children, err := c.client.Ls(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, child := range children {
				fmt.Fprintln(out, child)
			}
			return nil
		},
	}
}

func newSchemaCmd(c *cli) *cobra.Command {
	var dialect string

	cmd := &cobra.Command{
		Use:   "schema URL",
		Short: "Infer the schema of a data file",
		Long: `Infer the schema of a CSV, TSV, Parquet, JSON or NDJSON file and print it
as JSON. Compressed files (.gz, .zst) are read transparently.

Examples:
  recap schema /data/events.jsonl
  recap schema s3://bucket/people.csv --dialect tableschema
  recap schema /data/events.parquet --dialect parquet`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if !slices.Contains(convert.Dialects(), dialect) {
				return fmt.Errorf("--dialect must be one of %s, got %q", strings.Join(convert.Dialects(), ", "), dialect)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := c.client.Schema(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out, err := convert.ExportJSON(t, dialect)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&dialect, "dialect", convert.DialectCanonical, "output dialect: "+strings.Join(convert.Dialects(), ", "))
	return cmd
}

func newServeCmd(c *cli) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve ls and schema over HTTP",
		Long: `Start the HTTP gateway.

Endpoints:
  GET /ls/{url}            children of url
  GET /schema/{url}        schema of url (?dialect=canonical|jsonschema|tableschema|parquet)
  GET /healthz             liveness
  GET /metrics             Prometheus metrics

Examples:
  recap serve
  recap serve --port 9090
  curl 'localhost:8080/schema?url=s3://bucket/events.jsonl'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if host != "" {
				c.cfg.Server.Host = host
			}
			if port != 0 {
				c.cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return server.New(c.client, c.logger).Run(ctx, c.cfg.Server)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}
