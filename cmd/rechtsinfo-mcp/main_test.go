package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gaspardpetit/rechtsinfo-mcp/internal/config"
)

func TestVersionFlag(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the binary")
	}
	const (
		v    = "v0.0.1-test"
		sha  = "abcdef"
		date = "2000-01-02T03:04:05Z"
	)
	ldflags := fmt.Sprintf("-X main.version=%s -X main.buildSHA=%s -X main.buildDate=%s", v, sha, date)
	cmd := exec.Command("go", "run", "-ldflags", ldflags, ".", "--version")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("command failed: %v\n%s", err, out)
	}
	got := strings.TrimSpace(string(out))
	want := fmt.Sprintf("rechtsinfo-mcp version=%s sha=%s date=%s", v, sha, date)
	if got != want {
		t.Fatalf("unexpected output: got %q want %q", got, want)
	}
}

func TestConfigPathFromArgs(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{args: nil, want: ""},
		{args: []string{"--port", "4000"}, want: ""},
		{args: []string{"--config", "/tmp/a.yaml"}, want: "/tmp/a.yaml"},
		{args: []string{"-config=/tmp/b.yaml", "--port", "1"}, want: "/tmp/b.yaml"},
		{args: []string{"--", "--config", "/tmp/c.yaml"}, want: ""},
	}
	for _, tt := range tests {
		if got := configPathFromArgs(tt.args); got != tt.want {
			t.Fatalf("configPathFromArgs(%v) = %q; want %q", tt.args, got, tt.want)
		}
	}
}

func TestLoadConfigLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte("port: 8081\nmode: sse\ncache_ttl: 1m\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("MODE", "http")

	cfg, err := loadConfig(nil)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Port != 8081 {
		t.Fatalf("port = %d; want 8081 from file", cfg.Port)
	}
	if cfg.MetricsAddr != ":8081" {
		t.Fatalf("metrics addr = %q; want :8081", cfg.MetricsAddr)
	}
	if cfg.Mode != config.ModeHTTP {
		t.Fatalf("mode = %q; env should override file", cfg.Mode)
	}
	if cfg.CacheTTL != time.Minute {
		t.Fatalf("cache ttl = %v; want 1m", cfg.CacheTTL)
	}
	if cfg.ConfigFile != path {
		t.Fatalf("config file = %q", cfg.ConfigFile)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := loadConfig([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	if err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
	if cfg.Port != 3000 {
		t.Fatalf("port = %d; want default 3000", cfg.Port)
	}
}

func TestLoadConfigInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("port: [\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadConfig([]string{"-config", path}); err == nil {
		t.Fatalf("expected error for invalid yaml")
	}
}
