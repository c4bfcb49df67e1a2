package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/cyclegrep/cyclegrep/internal/config"
	"github.com/cyclegrep/cyclegrep/internal/logx"
	"github.com/cyclegrep/cyclegrep/internal/serve"
	"github.com/cyclegrep/cyclegrep/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	cfg := config.Default()
	var configPath string
	var disableTelemetry bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the search engine as an HTTP+gRPC service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, cfg, configPath, disableTelemetry)
		},
	}

	bindSearchFlags(cmd, &cfg)
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML or JSON config file")
	cmd.Flags().StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "address the HTTP server listens on")
	cmd.Flags().StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "address the gRPC server listens on")
	cmd.Flags().BoolVar(&disableTelemetry, "disable-telemetry", false, "skip Prometheus/OTel exporter initialization")

	return cmd
}

func runServe(cmd *cobra.Command, cfg config.Config, configPath string, disableTelemetry bool) error {
	if configPath != "" {
		fc, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		cfg = config.Merge(cfg, fc, explicitFlagSet(cmd))
	}
	if root, err := os.Getwd(); err == nil && cfg.Root == "" {
		cfg.Root = root
	}

	log := logx.New(parseLevelOrDefault(cfg.LogLevel), os.Stderr)

	if disableTelemetry {
		telemetry.Disable()
	}
	if err := telemetry.Init(); err != nil {
		log.Warn().Err(err).Msg("telemetry initialization failed, continuing without metrics")
	}

	srv := serve.New(serve.ConfigFromAppConfig(cfg), log)
	return srv.Run(context.Background())
}
