// Package config assembles one engine.Request (plus the server/bench
// options layered on top of it) from three sources, in ascending priority:
// built-in defaults, an optional YAML/JSON config file, and explicitly-set
// CLI flags. It follows the pointer-field fileConfig merge pattern used
// throughout this codebase's tooling: a flag the user actually typed always
// wins over the file, and the file always wins over the default.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cyclegrep/cyclegrep/internal/logx"
)

// Config is the fully-resolved configuration for one invocation of the
// search, serve, or bench subcommands.
type Config struct {
	Symbol        string
	Language      string
	Root          string
	Timeout       time.Duration
	MaxMatches    int
	Concurrency   int
	EnableIndex   bool
	EnableRga     bool
	UseFd         bool
	UseAstGrep    bool
	IndexDir      string
	CacheDir      string
	LogDir        string
	ContextBefore int
	ContextAfter  int
	LogLevel      string

	// Serve-only.
	HTTPAddr string
	GRPCAddr string

	// Bench-only.
	BenchScenarios string
	BenchRuns      int
}

// Default returns the built-in defaults named by this project's external
// interfaces: a 3s per-tool timeout, a 20-match cap, ripgrep concurrency
// of 8, index and rga disabled, fd/ast-grep enabled, and the log level
// taken from the CYCLEGREP_LOG environment variable (info when unset).
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	cacheDir := filepath.Join(home, ".cache", "cyclegrep")
	logLevel := os.Getenv(logx.EnvVar)
	if logLevel == "" {
		logLevel = "info"
	}
	return Config{
		Timeout:       3 * time.Second,
		MaxMatches:    20,
		Concurrency:   8,
		EnableIndex:   false,
		EnableRga:     false,
		UseFd:         true,
		UseAstGrep:    true,
		IndexDir:      filepath.Join(cacheDir, "index"),
		CacheDir:      cacheDir,
		ContextBefore: 0,
		ContextAfter:  0,
		LogLevel:      logLevel,
		HTTPAddr:      ":8080",
		GRPCAddr:      ":8081",
		BenchRuns:     10,
	}
}

// fileConfig mirrors Config with pointer fields so that "absent" and
// "explicitly zero" can be told apart when merging.
type fileConfig struct {
	Symbol        *string `json:"symbol" yaml:"symbol"`
	Language      *string `json:"language" yaml:"language"`
	Root          *string `json:"root" yaml:"root"`
	TimeoutS      *int    `json:"timeout_s" yaml:"timeout_s"`
	MaxMatches    *int    `json:"max_matches" yaml:"max_matches"`
	Concurrency   *int    `json:"concurrency" yaml:"concurrency"`
	EnableIndex   *bool   `json:"enable_index" yaml:"enable_index"`
	EnableRga     *bool   `json:"enable_rga" yaml:"enable_rga"`
	UseFd         *bool   `json:"use_fd" yaml:"use_fd"`
	UseAstGrep    *bool   `json:"use_ast_grep" yaml:"use_ast_grep"`
	IndexDir      *string `json:"index_dir" yaml:"index_dir"`
	CacheDir      *string `json:"cache_dir" yaml:"cache_dir"`
	LogDir        *string `json:"log_dir" yaml:"log_dir"`
	ContextBefore *int    `json:"context_before" yaml:"context_before"`
	ContextAfter  *int    `json:"context_after" yaml:"context_after"`
	LogLevel      *string `json:"log_level" yaml:"log_level"`
	HTTPAddr      *string `json:"http_addr" yaml:"http_addr"`
	GRPCAddr      *string `json:"grpc_addr" yaml:"grpc_addr"`

	BenchScenarios *string `json:"bench_scenarios" yaml:"bench_scenarios"`
	BenchRuns      *int    `json:"bench_runs" yaml:"bench_runs"`
}

// LoadFile reads a YAML or JSON config file, dispatching on extension and
// falling back to trying both when the extension is unrecognized.
func LoadFile(path string) (*fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return nil, err
		}
	case ".json":
		if err := json.Unmarshal(raw, &fc); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			if err := json.Unmarshal(raw, &fc); err != nil {
				return nil, fmt.Errorf("config: %q is neither valid YAML nor JSON: %w", path, err)
			}
		}
	}
	return &fc, nil
}

// Merge applies fc on top of cfg, skipping any field named in explicit (the
// set of flag names the user actually passed on the command line).
func Merge(cfg Config, fc *fileConfig, explicit map[string]bool) Config {
	if fc == nil {
		return cfg
	}
	set := func(name string) bool { return !explicit[name] }

	if fc.Symbol != nil && set("symbol") {
		cfg.Symbol = *fc.Symbol
	}
	if fc.Language != nil && set("language") {
		cfg.Language = *fc.Language
	}
	if fc.Root != nil && set("root") {
		cfg.Root = *fc.Root
	}
	if fc.TimeoutS != nil && set("timeout") {
		cfg.Timeout = time.Duration(*fc.TimeoutS) * time.Second
	}
	if fc.MaxMatches != nil && set("max-matches") {
		cfg.MaxMatches = *fc.MaxMatches
	}
	if fc.Concurrency != nil && set("concurrency") {
		cfg.Concurrency = *fc.Concurrency
	}
	if fc.EnableIndex != nil && set("index") {
		cfg.EnableIndex = *fc.EnableIndex
	}
	if fc.EnableRga != nil && set("rga") {
		cfg.EnableRga = *fc.EnableRga
	}
	if fc.UseFd != nil && set("fd") {
		cfg.UseFd = *fc.UseFd
	}
	if fc.UseAstGrep != nil && set("ast-grep") {
		cfg.UseAstGrep = *fc.UseAstGrep
	}
	if fc.IndexDir != nil && set("index-dir") {
		cfg.IndexDir = *fc.IndexDir
	}
	if fc.CacheDir != nil && set("cache-dir") {
		cfg.CacheDir = *fc.CacheDir
	}
	if fc.LogDir != nil && set("log-dir") {
		cfg.LogDir = *fc.LogDir
	}
	if fc.ContextBefore != nil && set("context-before") {
		cfg.ContextBefore = *fc.ContextBefore
	}
	if fc.ContextAfter != nil && set("context-after") {
		cfg.ContextAfter = *fc.ContextAfter
	}
	if fc.LogLevel != nil && set("log-level") {
		cfg.LogLevel = *fc.LogLevel
	}
	if fc.HTTPAddr != nil && set("http-addr") {
		cfg.HTTPAddr = *fc.HTTPAddr
	}
	if fc.GRPCAddr != nil && set("grpc-addr") {
		cfg.GRPCAddr = *fc.GRPCAddr
	}
	if fc.BenchScenarios != nil && set("scenarios") {
		cfg.BenchScenarios = *fc.BenchScenarios
	}
	if fc.BenchRuns != nil && set("runs") {
		cfg.BenchRuns = *fc.BenchRuns
	}
	return cfg
}

// Validate rejects configurations the engine cannot act on.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Symbol) == "" {
		return errors.New("config: symbol is required")
	}
	if cfg.MaxMatches <= 0 {
		return errors.New("config: max-matches must be positive")
	}
	if cfg.Concurrency <= 0 {
		return errors.New("config: concurrency must be positive")
	}
	if cfg.Timeout <= 0 {
		return errors.New("config: timeout must be positive")
	}
	return nil
}
