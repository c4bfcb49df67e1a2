package index

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsEmptyOrMissingDirForMissingPath(t *testing.T) {
	empty, err := isEmptyOrMissingDir(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !empty {
		t.Error("expected a missing directory to be reported as empty")
	}
}

func TestIsEmptyOrMissingDirForEmptyDir(t *testing.T) {
	dir := t.TempDir()
	empty, err := isEmptyOrMissingDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !empty {
		t.Error("expected a freshly created directory to be reported as empty")
	}
}

func TestIsEmptyOrMissingDirForPopulatedDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "file.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	empty, err := isEmptyOrMissingDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty {
		t.Error("expected a populated directory to be reported as non-empty")
	}
}
