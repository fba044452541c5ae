package migrations

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveDirRejectsEmptyPath(t *testing.T) {
	if _, err := resolveDir("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestResolveDirRejectsMissingDirectory(t *testing.T) {
	if _, err := resolveDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestResolveDirRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := resolveDir(path); err == nil {
		t.Fatal("expected error for non-directory path")
	}
}

func TestResolveDirAcceptsDirectory(t *testing.T) {
	dir := t.TempDir()
	resolved, err := resolveDir(dir)
	if err != nil {
		t.Fatalf("resolveDir: %v", err)
	}
	if !filepath.IsAbs(resolved) {
		t.Fatalf("resolved path %q is not absolute", resolved)
	}
}

func TestFileURL(t *testing.T) {
	u := fileURL("/tmp/migrations")
	if !strings.HasPrefix(u, "file:///") {
		t.Fatalf("url = %s, want file:/// prefix", u)
	}
}
