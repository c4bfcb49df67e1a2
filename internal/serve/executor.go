// Package serve hosts the long-running search service: a SearchExecutor
// shared by the HTTP and gRPC front ends, and a Server that runs both
// concurrently behind one shutdown signal, splitting a protocol-agnostic
// executor from the two wire adapters that translate requests into it.
package serve

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cyclegrep/cyclegrep/internal/config"
	"github.com/cyclegrep/cyclegrep/internal/engine"
)

func durationSeconds(s int) time.Duration {
	return time.Duration(s) * time.Second
}

// Config is the immutable configuration a SearchExecutor applies to every
// request that doesn't override a field itself.
type Config struct {
	Root        string
	HTTPAddr    string
	GRPCAddr    string
	Timeout     int
	MaxMatches  int
	Concurrency int
	UseIndex    bool
	UseRga      bool
	UseFd       bool
	UseAstGrep  bool
	IndexDir    string
	CacheDir    string
	LogDir      string
}

// ConfigFromAppConfig adapts the CLI/file-resolved config.Config into the
// executor's own Config, resolving index/cache/log dirs relative to root
// the way normalize_relative does.
func ConfigFromAppConfig(cfg config.Config) Config {
	return Config{
		Root:        cfg.Root,
		HTTPAddr:    cfg.HTTPAddr,
		GRPCAddr:    cfg.GRPCAddr,
		Timeout:     int(cfg.Timeout.Seconds()),
		MaxMatches:  cfg.MaxMatches,
		Concurrency: cfg.Concurrency,
		UseIndex:    cfg.EnableIndex,
		UseRga:      cfg.EnableRga,
		UseFd:       cfg.UseFd,
		UseAstGrep:  cfg.UseAstGrep,
		IndexDir:    normalizeRelative(cfg.Root, cfg.IndexDir),
		CacheDir:    normalizeRelative(cfg.Root, cfg.CacheDir),
		LogDir:      normalizeRelative(cfg.Root, cfg.LogDir),
	}
}

func normalizeRelative(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// SearchInput is the protocol-agnostic request both the HTTP and gRPC
// entry points translate their wire payload into. Pointer/zero-value
// fields that are left unset fall back to the executor's Config.
type SearchInput struct {
	Symbol        string
	Language      string
	Root          string
	TimeoutS      int
	MaxMatches    int
	Concurrency   int
	EnableIndex   *bool
	EnableRga     *bool
	IndexDir      string
	CacheDir      string
	LogDir        string
	ContextBefore int
	ContextAfter  int
	Body          bool
	ToolFlags     map[string]bool
}

// SearchExecutor converts a SearchInput into an engine.Request, runs one
// cycle, and returns its summary. It is shared by every wire protocol so
// that defaulting logic lives in exactly one place.
type SearchExecutor struct {
	cfg Config
	log zerolog.Logger
}

// NewSearchExecutor builds an executor bound to cfg.
func NewSearchExecutor(cfg Config, log zerolog.Logger) *SearchExecutor {
	return &SearchExecutor{cfg: cfg, log: log}
}

// Root returns the executor's default repository root.
func (e *SearchExecutor) Root() string { return e.cfg.Root }

func (e *SearchExecutor) normalizeWithRoot(path string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.cfg.Root, path)
}

// Execute runs one search cycle for in, applying the executor's defaults
// to any field in left unset.
func (e *SearchExecutor) Execute(ctx context.Context, in SearchInput) (*engine.SearchSummary, error) {
	if strings.TrimSpace(in.Symbol) == "" {
		return nil, fmt.Errorf("serve: symbol is required")
	}

	root := e.cfg.Root
	if in.Root != "" {
		root = e.normalizeWithRoot(in.Root)
	}

	timeoutS := in.TimeoutS
	if timeoutS <= 0 {
		timeoutS = e.cfg.Timeout
	}
	maxMatches := in.MaxMatches
	if maxMatches <= 0 {
		maxMatches = e.cfg.MaxMatches
	}
	concurrency := in.Concurrency
	if concurrency <= 0 {
		concurrency = e.cfg.Concurrency
	}

	enableIndex := e.cfg.UseIndex
	if in.EnableIndex != nil {
		enableIndex = *in.EnableIndex
	}
	enableRga := e.cfg.UseRga
	if in.EnableRga != nil {
		enableRga = *in.EnableRga
	}

	indexDir := e.cfg.IndexDir
	if in.IndexDir != "" {
		indexDir = e.normalizeWithRoot(in.IndexDir)
	}
	cacheDir := e.cfg.CacheDir
	if in.CacheDir != "" {
		cacheDir = e.normalizeWithRoot(in.CacheDir)
	}
	logDir := e.cfg.LogDir
	if in.LogDir != "" {
		logDir = e.normalizeWithRoot(in.LogDir)
	}

	req := engine.Request{
		Symbol:        in.Symbol,
		Language:      in.Language,
		Root:          root,
		Timeout:       durationSeconds(timeoutS),
		MaxMatches:    maxMatches,
		Concurrency:   concurrency,
		EnableIndex:   enableIndex,
		EnableRga:     enableRga,
		UseFd:         e.cfg.UseFd,
		UseAstGrep:    e.cfg.UseAstGrep,
		IndexDir:      indexDir,
		CacheDir:      cacheDir,
		LogDir:        logDir,
		ContextBefore: in.ContextBefore,
		ContextAfter:  in.ContextAfter,
		Body:          in.Body,
		ToolFlags:     in.ToolFlags,
	}
	applyToolFlags(&req, in.ToolFlags)

	eng, err := engine.NewEngine(req, e.log)
	if err != nil {
		return nil, err
	}
	defer eng.Close()

	return eng.RunCycle(ctx)
}

func applyToolFlags(req *engine.Request, flags map[string]bool) {
	for key, value := range flags {
		switch strings.ToLower(key) {
		case "fd", "use_fd":
			req.UseFd = value
		case "disable_fd":
			req.UseFd = !value
		case "ast-grep", "ast_grep", "use_ast_grep":
			req.UseAstGrep = value
		case "index", "use_index", "enable_index":
			req.EnableIndex = value
		case "rga", "use_rga", "enable_rga":
			req.EnableRga = value
		case "body", "fetch_body", "include_body":
			req.Body = value
		}
	}
}
