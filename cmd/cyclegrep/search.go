package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cyclegrep/cyclegrep/internal/config"
	"github.com/cyclegrep/cyclegrep/internal/engine"
	"github.com/cyclegrep/cyclegrep/internal/logx"
)

func newSearchCmd() *cobra.Command {
	cfg := config.Default()
	var configPath string

	cmd := &cobra.Command{
		Use:   "search [symbol]",
		Short: "Run one search cycle for a symbol and print its summary as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Symbol = args[0]
			return runSearch(cmd, cfg, configPath)
		},
	}

	bindSearchFlags(cmd, &cfg)
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML or JSON config file")

	return cmd
}

func bindSearchFlags(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().StringVar(&cfg.Language, "language", cfg.Language, "language hint (e.g. rust, typescript, swift)")
	cmd.Flags().StringVar(&cfg.Root, "root", cfg.Root, "repository root to search (default: current directory)")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-tool invocation timeout")
	cmd.Flags().IntVar(&cfg.MaxMatches, "max-matches", cfg.MaxMatches, "maximum matches kept per tool invocation")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "ripgrep thread count")
	cmd.Flags().BoolVar(&cfg.EnableIndex, "index", cfg.EnableIndex, "fall back to the inverted index when ripgrep finds nothing")
	cmd.Flags().BoolVar(&cfg.EnableRga, "rga", cfg.EnableRga, "fall back to ripgrep-all over binary/archive formats")
	cmd.Flags().BoolVar(&cfg.UseFd, "fd", cfg.UseFd, "use fd to seed discovery candidates")
	cmd.Flags().BoolVar(&cfg.UseAstGrep, "ast-grep", cfg.UseAstGrep, "confirm hits structurally with ast-grep")
	cmd.Flags().StringVar(&cfg.IndexDir, "index-dir", cfg.IndexDir, "directory backing the inverted index")
	cmd.Flags().StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "directory backing the persistent hint store")
	cmd.Flags().StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "directory receiving JSON-lines cycle logs")
	cmd.Flags().IntVar(&cfg.ContextBefore, "context-before", cfg.ContextBefore, "lines of context before each hit")
	cmd.Flags().IntVar(&cfg.ContextAfter, "context-after", cfg.ContextAfter, "lines of context after each hit")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: error, warn, info, debug, trace")
}

func explicitFlagSet(cmd *cobra.Command) map[string]bool {
	set := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { set[f.Name] = true })
	return set
}

func runSearch(cmd *cobra.Command, cfg config.Config, configPath string) error {
	symbol := cfg.Symbol
	if configPath != "" {
		fc, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		cfg = config.Merge(cfg, fc, explicitFlagSet(cmd))
	}
	cfg.Symbol = symbol

	if root, err := os.Getwd(); err == nil && cfg.Root == "" {
		cfg.Root = root
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}

	log := logx.New(parseLevelOrDefault(cfg.LogLevel), os.Stderr)

	req := engine.Request{
		Symbol:        cfg.Symbol,
		Language:      cfg.Language,
		Root:          cfg.Root,
		Timeout:       cfg.Timeout,
		MaxMatches:    cfg.MaxMatches,
		Concurrency:   cfg.Concurrency,
		EnableIndex:   cfg.EnableIndex,
		EnableRga:     cfg.EnableRga,
		UseFd:         cfg.UseFd,
		UseAstGrep:    cfg.UseAstGrep,
		IndexDir:      cfg.IndexDir,
		CacheDir:      cfg.CacheDir,
		LogDir:        cfg.LogDir,
		ContextBefore: cfg.ContextBefore,
		ContextAfter:  cfg.ContextAfter,
	}

	eng, err := engine.NewEngine(req, log)
	if err != nil {
		return fmt.Errorf("initialize engine: %w", err)
	}
	defer eng.Close()

	summary, err := eng.RunCycle(context.Background())
	if err != nil {
		return fmt.Errorf("run search cycle: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func parseLevelOrDefault(s string) zerolog.Level {
	level, err := logx.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
