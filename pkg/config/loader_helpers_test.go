package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandHomeDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got := expandHomeDir("~/x/y.db"); got != filepath.Join(home, "x", "y.db") {
		t.Fatalf("unexpected expansion %q", got)
	}
	if got := expandHomeDir("/abs"); got != "/abs" {
		t.Fatalf("absolute path changed: %q", got)
	}
	if got := expandHomeDir("  "); got != "" {
		t.Fatalf("blank should stay blank: %q", got)
	}
}

func TestLoadAndMergeKeepsUnsetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("server:\n  allowed_origins: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.Server.AllowedOrigins = []string{"http://x"}
	if err := loadAndMerge(cfg, path); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if cfg.Server.Bind != "127.0.0.1:4780" {
		t.Fatalf("bind lost: %q", cfg.Server.Bind)
	}
	if cfg.Server.AllowedOrigins == nil || len(cfg.Server.AllowedOrigins) != 0 {
		t.Fatalf("explicit empty list should clear origins, got %v", cfg.Server.AllowedOrigins)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("X_FLAG", "off")
	if v, ok := envBool("X_FLAG"); !ok || v {
		t.Fatalf("expected false/true, got %v/%v", v, ok)
	}
	t.Setenv("X_FLAG", "maybe")
	if _, ok := envBool("X_FLAG"); ok {
		t.Fatalf("unrecognised values should be ignored")
	}
}
