package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/odvcencio/respview/pkg/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	opts := cfg.MirrorOptions()
	if opts.Timings.CaptureInterval != 1100*time.Millisecond {
		t.Fatalf("unexpected capture interval %v", opts.Timings.CaptureInterval)
	}
	if opts.JPEGQuality != 70 || opts.MaxTouchPoints != 5 {
		t.Fatalf("unexpected capture options: %+v", opts)
	}
	if cfg.Server.ChannelPrefix != "responsive-view:" {
		t.Fatalf("unexpected channel prefix %q", cfg.Server.ChannelPrefix)
	}
	if cfg.BusConfig().Kind != "memory" {
		t.Fatalf("expected memory bus by default")
	}
}

func TestLoadHierarchy(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	t.Setenv("HOME", home)

	writeFile(t, filepath.Join(home, ".respview", "config.yaml"), `
server:
  bind: 0.0.0.0:9000
mirror:
  jpeg_quality: 50
  capture_interval: 2s
`)
	writeFile(t, filepath.Join(project, ".respview", "config.yaml"), `
mirror:
  jpeg_quality: 85
browser:
  headless: true
`)

	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(project); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Bind != "0.0.0.0:9000" {
		t.Fatalf("user bind not applied: %q", cfg.Server.Bind)
	}
	if cfg.Mirror.JPEGQuality != 85 {
		t.Fatalf("project config should win, got %d", cfg.Mirror.JPEGQuality)
	}
	if cfg.Mirror.CaptureInterval != 2*time.Second {
		t.Fatalf("expected 2s interval, got %v", cfg.Mirror.CaptureInterval)
	}
	if !cfg.Browser.Headless {
		t.Fatalf("expected headless from project config")
	}
	if cfg.Mirror.AttachTimeout != 2500*time.Millisecond {
		t.Fatalf("untouched keys should keep defaults, got %v", cfg.Mirror.AttachTimeout)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "logging:\n  level: debug\n")

	t.Setenv("RESPVIEW_CONTROL_URL", "ws://127.0.0.1:9222/devtools/browser/abc")
	t.Setenv("RESPVIEW_HEADLESS", "yes")
	t.Setenv("RESPVIEW_CAPTURE_INTERVAL", "500ms")
	t.Setenv("RESPVIEW_ALLOWED_ORIGINS", "http://a, http://b")
	t.Setenv("RESPVIEW_BUS_KIND", "nats")
	t.Setenv("RESPVIEW_NATS_URL", "nats://bus:4222")

	cfg, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CDP().ControlURL != "ws://127.0.0.1:9222/devtools/browser/abc" || !cfg.CDP().Headless {
		t.Fatalf("browser overrides not applied: %+v", cfg.CDP())
	}
	if cfg.Mirror.CaptureInterval != 500*time.Millisecond {
		t.Fatalf("interval override not applied: %v", cfg.Mirror.CaptureInterval)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b" {
		t.Fatalf("origins override not applied: %v", cfg.Server.AllowedOrigins)
	}
	if bc := cfg.BusConfig(); bc.Kind != "nats" || bc.URL != "nats://bus:4222" {
		t.Fatalf("bus override not applied: %+v", bc)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("file level lost: %q", cfg.Logging.Level)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"zero interval", func(c *config.Config) { c.Mirror.CaptureInterval = 0 }, "mirror"},
		{"empty prefix", func(c *config.Config) { c.Server.ChannelPrefix = " " }, "channel_prefix"},
		{"quality", func(c *config.Config) { c.Mirror.JPEGQuality = 101 }, "jpeg quality"},
		{"bus kind", func(c *config.Config) { c.Bus.Kind = "kafka" }, "bus.kind"},
		{"control url", func(c *config.Config) { c.Browser.ControlURL = "ftp://x" }, "control_url"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestInputLimit(t *testing.T) {
	cfg := config.DefaultConfig()
	limit, burst := cfg.InputLimit()
	if limit != 30 || burst != 10 {
		t.Fatalf("unexpected limit %v/%d", limit, burst)
	}
	cfg.Mirror.InputRate = 0
	if limit, _ := cfg.InputLimit(); limit != 0 {
		t.Fatalf("expected limiting disabled")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
