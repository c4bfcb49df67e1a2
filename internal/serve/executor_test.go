package serve

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cyclegrep/cyclegrep/internal/config"
	"github.com/cyclegrep/cyclegrep/internal/engine"
)

func TestConfigFromAppConfigResolvesRelativeDirs(t *testing.T) {
	cfg := config.Config{
		Root:       "/repo",
		Timeout:    5 * time.Second,
		MaxMatches: 10,
		IndexDir:   ".cyclegrep-index",
		CacheDir:   "/abs/cache",
	}

	got := ConfigFromAppConfig(cfg)

	if got.Timeout != 5 {
		t.Errorf("Timeout = %d, want 5", got.Timeout)
	}
	if got.IndexDir != "/repo/.cyclegrep-index" {
		t.Errorf("IndexDir = %q, want relative dir joined to root", got.IndexDir)
	}
	if got.CacheDir != "/abs/cache" {
		t.Errorf("CacheDir = %q, want the absolute path left untouched", got.CacheDir)
	}
}

func TestNormalizeRelativeLeavesAbsoluteAndEmptyAlone(t *testing.T) {
	if got := normalizeRelative("/root", ""); got != "" {
		t.Errorf("normalizeRelative(empty) = %q, want empty", got)
	}
	if got := normalizeRelative("/root", "/abs/path"); got != "/abs/path" {
		t.Errorf("normalizeRelative(absolute) = %q, want unchanged", got)
	}
	if got := normalizeRelative("/root", "rel"); got != "/root/rel" {
		t.Errorf("normalizeRelative(relative) = %q, want joined to root", got)
	}
}

func TestExecuteRejectsEmptySymbol(t *testing.T) {
	executor := NewSearchExecutor(Config{Root: t.TempDir()}, zerolog.New(io.Discard))

	_, err := executor.Execute(context.Background(), SearchInput{Symbol: "   "})
	if err == nil {
		t.Fatal("expected an error for a blank symbol")
	}
}

func TestApplyToolFlagsRecognizesAliases(t *testing.T) {
	req := &engine.Request{}
	applyToolFlags(req, map[string]bool{
		"fd":         true,
		"use_index":  true,
		"enable_rga": true,
		"ast-grep":   true,
		"fetch_body": true,
	})

	if !req.UseFd || !req.EnableIndex || !req.EnableRga || !req.UseAstGrep || !req.Body {
		t.Errorf("applyToolFlags did not set all aliased flags: %+v", req)
	}
}

func TestApplyToolFlagsIgnoresUnknownKeys(t *testing.T) {
	req := &engine.Request{UseFd: true}
	applyToolFlags(req, map[string]bool{"unknown": false})
	if !req.UseFd {
		t.Errorf("applyToolFlags should leave unrecognized-key fields untouched")
	}
}
