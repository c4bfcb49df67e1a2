package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Timeout != 3*time.Second {
		t.Fatalf("expected default timeout 3s, got %v", cfg.Timeout)
	}
	if cfg.MaxMatches != 20 {
		t.Fatalf("expected default max matches 20, got %d", cfg.MaxMatches)
	}
	if cfg.EnableIndex || cfg.EnableRga {
		t.Fatalf("expected index and rga disabled by default: %+v", cfg)
	}
	if !cfg.UseFd || !cfg.UseAstGrep {
		t.Fatalf("expected fd and ast-grep enabled by default: %+v", cfg)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default http addr :8080, got %q", cfg.HTTPAddr)
	}
}

func TestMergeSkipsExplicitFlags(t *testing.T) {
	cfg := Default()
	cfg.Symbol = "fromFlag"
	cfg.MaxMatches = 50

	fileSymbol := "fromFile"
	fileMax := 999
	fc := &fileConfig{
		Symbol:     &fileSymbol,
		MaxMatches: &fileMax,
	}

	explicit := map[string]bool{"symbol": true}
	merged := Merge(cfg, fc, explicit)

	if merged.Symbol != "fromFlag" {
		t.Fatalf("expected explicit flag to win, got %q", merged.Symbol)
	}
	if merged.MaxMatches != 999 {
		t.Fatalf("expected file value to win when flag was not set, got %d", merged.MaxMatches)
	}
}

func TestLoadFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cyclegrep.yaml")
	content := "symbol: Widget\nmax_matches: 42\nuse_fd: false\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	fc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fc.Symbol == nil || *fc.Symbol != "Widget" {
		t.Fatalf("expected symbol Widget, got %+v", fc.Symbol)
	}
	if fc.MaxMatches == nil || *fc.MaxMatches != 42 {
		t.Fatalf("expected max_matches 42, got %+v", fc.MaxMatches)
	}
	if fc.UseFd == nil || *fc.UseFd != false {
		t.Fatalf("expected use_fd false, got %+v", fc.UseFd)
	}
}

func TestLoadFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cyclegrep.json")
	content := `{"symbol": "Gadget", "concurrency": 4}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	fc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fc.Symbol == nil || *fc.Symbol != "Gadget" {
		t.Fatalf("expected symbol Gadget, got %+v", fc.Symbol)
	}
	if fc.Concurrency == nil || *fc.Concurrency != 4 {
		t.Fatalf("expected concurrency 4, got %+v", fc.Concurrency)
	}
}

func TestValidateRejectsEmptySymbol(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for empty symbol")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := Default()
	cfg.Symbol = "Widget"
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
