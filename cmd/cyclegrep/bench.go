package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cyclegrep/cyclegrep/internal/bench"
	"github.com/cyclegrep/cyclegrep/internal/config"
	"github.com/cyclegrep/cyclegrep/internal/logx"
)

func newBenchCmd() *cobra.Command {
	cfg := config.Default()
	var outputPath string

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a benchmark scenario file against the search cycle engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cfg, outputPath)
		},
	}

	cmd.Flags().StringVar(&cfg.BenchScenarios, "scenarios", "benchmarks/default.json", "path to the benchmark scenario file")
	cmd.Flags().IntVar(&cfg.BenchRuns, "runs", cfg.BenchRuns, "iterations to run per scenario")
	cmd.Flags().StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "cache directory applied to every scenario unless it overrides one")
	cmd.Flags().StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "log directory applied to every scenario unless it overrides one")
	cmd.Flags().BoolVar(&cfg.EnableIndex, "index", cfg.EnableIndex, "enable the inverted-index fallback by default")
	cmd.Flags().BoolVar(&cfg.EnableRga, "rga", cfg.EnableRga, "enable the ripgrep-all fallback by default")
	cmd.Flags().StringVar(&outputPath, "output", "", "append the run's JSON summary to this file")

	return cmd
}

func runBench(cfg config.Config, outputPath string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine current directory: %w", err)
	}

	scenarios, err := bench.LoadScenarios(cfg.BenchScenarios)
	if err != nil {
		return err
	}

	log := logx.New(parseLevelOrDefault(cfg.LogLevel), os.Stderr)

	opts := bench.Options{
		Iterations:  cfg.BenchRuns,
		CacheDir:    cfg.CacheDir,
		LogDir:      cfg.LogDir,
		EnableIndex: cfg.EnableIndex,
		EnableRga:   cfg.EnableRga,
		UseFd:       true,
		UseAstGrep:  true,
	}

	summary, err := bench.Run(context.Background(), cwd, scenarios, opts, log)
	if err != nil {
		return err
	}

	rendered, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(rendered))

	if outputPath != "" {
		if err := bench.AppendJSONLine(outputPath, summary); err != nil {
			return fmt.Errorf("write benchmark output: %w", err)
		}
	}

	return nil
}
