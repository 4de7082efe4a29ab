package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestResolveConfigPath(t *testing.T) {
	tests := []struct {
		name        string
		goos        string
		home        string
		programData string
		want        string
	}{
		{name: "linux", goos: "linux", home: "/home/user", want: "/etc/rechtsinfo-mcp/server.yaml"},
		{name: "darwin", goos: "darwin", home: "/Users/test", want: "/Users/test/Library/Application Support/rechtsinfo-mcp/server.yaml"},
		{name: "windows", goos: "windows", programData: "C:/ProgramData/", want: "C:/ProgramData/rechtsinfo-mcp/server.yaml"},
		{name: "windows default ProgramData", goos: "windows", want: "C:/ProgramData/rechtsinfo-mcp/server.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filepath.ToSlash(ResolveConfigPath(tt.goos, tt.home, tt.programData, "server.yaml"))
			if got != tt.want {
				t.Fatalf("path = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestSetDefaults(t *testing.T) {
	var c ServerConfig
	c.SetDefaults()
	if c.Port != 3000 {
		t.Fatalf("port = %d; want 3000", c.Port)
	}
	if c.Mode != ModeHTTP {
		t.Fatalf("mode = %q; want %q", c.Mode, ModeHTTP)
	}
	if c.MetricsAddr != ":3000" {
		t.Fatalf("metrics addr = %q; want :3000", c.MetricsAddr)
	}
	if len(c.AllowedOrigins) != 1 || c.AllowedOrigins[0] != "*" {
		t.Fatalf("allowed origins = %v; want [*]", c.AllowedOrigins)
	}
	if c.RequestTimeout != 30*time.Second {
		t.Fatalf("request timeout = %v; want 30s", c.RequestTimeout)
	}
	if c.UpstreamURL != DefaultUpstreamURL {
		t.Fatalf("upstream = %q", c.UpstreamURL)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("validate defaults: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("MODE", "SSE")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("REQUEST_TIMEOUT", "2.5")
	t.Setenv("CACHE_TTL", "1m")
	t.Setenv("UPSTREAM_URL", "http://upstream.local/")

	var c ServerConfig
	c.SetDefaults()
	c.ApplyEnv()

	if c.Port != 4000 {
		t.Fatalf("port = %d; want 4000", c.Port)
	}
	if c.MetricsAddr != ":4000" {
		t.Fatalf("metrics addr = %q; want :4000", c.MetricsAddr)
	}
	if c.Mode != ModeSSE {
		t.Fatalf("mode = %q; want sse", c.Mode)
	}
	if len(c.AllowedOrigins) != 2 || c.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("allowed origins = %v", c.AllowedOrigins)
	}
	if c.RequestTimeout != 2500*time.Millisecond {
		t.Fatalf("request timeout = %v; want 2.5s", c.RequestTimeout)
	}
	if c.CacheTTL != time.Minute {
		t.Fatalf("cache ttl = %v; want 1m", c.CacheTTL)
	}
	if c.UpstreamURL != "http://upstream.local" {
		t.Fatalf("upstream = %q", c.UpstreamURL)
	}
}

func TestApplyEnvSeparateMetricsPort(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("METRICS_PORT", "9090")
	var c ServerConfig
	c.SetDefaults()
	c.ApplyEnv()
	if c.MetricsAddr != ":9090" {
		t.Fatalf("metrics addr = %q; want :9090", c.MetricsAddr)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	data := []byte("port: 8081\nmode: sse\nrequest_timeout: 5s\nallowed_origins:\n  - https://n8n.example\nredis_addr: redis://localhost:6379/2\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	var c ServerConfig
	if err := c.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	c.SetDefaults()
	if c.Port != 8081 || c.Mode != ModeSSE {
		t.Fatalf("port/mode = %d/%q", c.Port, c.Mode)
	}
	if c.RequestTimeout != 5*time.Second {
		t.Fatalf("request timeout = %v; want 5s", c.RequestTimeout)
	}
	if len(c.AllowedOrigins) != 1 || c.AllowedOrigins[0] != "https://n8n.example" {
		t.Fatalf("allowed origins = %v", c.AllowedOrigins)
	}
	if c.RedisAddr != "redis://localhost:6379/2" {
		t.Fatalf("redis addr = %q", c.RedisAddr)
	}
}

func TestValidate(t *testing.T) {
	var c ServerConfig
	c.SetDefaults()
	c.Mode = "grpc"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
	c.Mode = ModeHTTP
	c.Port = 70000
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for invalid port")
	}
}
