package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Serving modes.
const (
	ModeHTTP = "http"
	ModeSSE  = "sse"
)

// DefaultUpstreamURL is the public rechtsinformationen.bund.de API.
const DefaultUpstreamURL = "https://testphase.rechtsinformationen.bund.de"

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	Mode            string        `yaml:"mode"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	LogLevel        string        `yaml:"log_level"`
	ConfigFile      string        `yaml:"-"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxRequestBytes int64         `yaml:"max_request_bytes"`
	DrainTimeout    time.Duration `yaml:"drain_timeout"`
	RedisAddr       string        `yaml:"redis_addr"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	UpstreamURL     string        `yaml:"upstream_url"`
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
}

// SetDefaults initializes c with built-in defaults.
func (c *ServerConfig) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Port == 0 {
		c.Port = 3000
	}
	if c.Mode == "" {
		c.Mode = ModeHTTP
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = fmt.Sprintf(":%d", c.Port)
	}
	if c.AllowedOrigins == nil {
		c.AllowedOrigins = []string{"*"}
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.MaxRequestBytes == 0 {
		c.MaxRequestBytes = 1 << 20
	}
	if c.DrainTimeout == 0 {
		c.DrainTimeout = 10 * time.Second
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 10 * time.Minute
	}
	if c.UpstreamURL == "" {
		c.UpstreamURL = DefaultUpstreamURL
	}
	if c.UpstreamTimeout == 0 {
		c.UpstreamTimeout = 15 * time.Second
	}
	if c.ConfigFile == "" {
		c.ConfigFile = DefaultConfigPath("server.yaml")
	}
}

// ApplyEnv overlays environment variables onto the current config values.
func (c *ServerConfig) ApplyEnv() {
	if v := GetEnv("CONFIG_FILE", ""); v != "" {
		c.ConfigFile = v
	}
	if v := GetEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := GetEnv("MODE", ""); v != "" {
		c.Mode = strings.ToLower(v)
	}
	portFromEnv := false
	if v := GetEnv("PORT", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
			portFromEnv = true
		}
	}
	if v := GetEnv("METRICS_PORT", ""); v != "" {
		c.MetricsAddr = metricsAddr(v)
	} else if portFromEnv || c.MetricsAddr == "" {
		c.MetricsAddr = fmt.Sprintf(":%d", c.Port)
	}
	if v := GetEnv("ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitComma(v)
	}
	if v := GetEnv("REQUEST_TIMEOUT", ""); v != "" {
		if d, ok := parseSeconds(v); ok {
			c.RequestTimeout = d
		}
	}
	if v := GetEnv("MAX_REQUEST_BYTES", ""); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxRequestBytes = n
		}
	}
	if v := GetEnv("DRAIN_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.DrainTimeout = d
		}
	}
	if v := GetEnv("REDIS_ADDR", ""); v != "" {
		c.RedisAddr = v
	}
	if v := GetEnv("CACHE_TTL", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.CacheTTL = d
		}
	}
	if v := GetEnv("UPSTREAM_URL", ""); v != "" {
		c.UpstreamURL = strings.TrimRight(v, "/")
	}
	if v := GetEnv("UPSTREAM_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.UpstreamTimeout = d
		}
	}
}

// BindFlagsFromCurrent binds command line flags using the current config values as defaults.
func (c *ServerConfig) BindFlagsFromCurrent() {
	flag.StringVar(&c.ConfigFile, "config", c.ConfigFile, "server config file path")
	flag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log verbosity (all, debug, info, warn, error, fatal, none)")
	flag.StringVar(&c.Mode, "mode", c.Mode, "transport mode: http (stateless POST /mcp) or sse (GET /sse + POST /messages)")
	flag.IntVar(&c.Port, "port", c.Port, "HTTP listen port")
	flag.Func("metrics-port", "Prometheus metrics listen address or port; defaults to the value of --port", func(v string) error {
		c.MetricsAddr = metricsAddr(v)
		return nil
	})
	flag.Func("allowed-origins", "comma separated list of allowed CORS origins", func(v string) error {
		c.AllowedOrigins = splitComma(v)
		return nil
	})
	flag.Func("request-timeout", "seconds to wait for the MCP server to answer a POST /mcp request", func(v string) error {
		d, ok := parseSeconds(v)
		if !ok {
			return fmt.Errorf("invalid request timeout %q", v)
		}
		c.RequestTimeout = d
		return nil
	})
	flag.Int64Var(&c.MaxRequestBytes, "max-request-bytes", c.MaxRequestBytes, "maximum accepted JSON-RPC request body size")
	flag.DurationVar(&c.DrainTimeout, "drain-timeout", c.DrainTimeout, "time to keep serving in-flight requests after the first termination signal")
	flag.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "redis connection URL for the shared lookup cache; empty uses an in-memory cache")
	flag.DurationVar(&c.CacheTTL, "cache-ttl", c.CacheTTL, "lifetime of cached upstream responses (0 disables caching)")
	flag.StringVar(&c.UpstreamURL, "upstream-url", c.UpstreamURL, "base URL of the legal information API")
	flag.DurationVar(&c.UpstreamTimeout, "upstream-timeout", c.UpstreamTimeout, "timeout for upstream API calls")
}

// Validate reports configuration values the server cannot start with.
func (c *ServerConfig) Validate() error {
	switch c.Mode {
	case ModeHTTP, ModeSSE:
	default:
		return fmt.Errorf("unknown mode %q (want %s or %s)", c.Mode, ModeHTTP, ModeSSE)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.MaxRequestBytes <= 0 {
		return fmt.Errorf("max request bytes must be positive")
	}
	return nil
}

// LoadFile populates the config from a YAML file.
func (c *ServerConfig) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, c)
}

func metricsAddr(v string) string {
	if strings.Contains(v, ":") {
		return v
	}
	return ":" + v
}

func parseSeconds(v string) (time.Duration, bool) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(f * float64(time.Second)), true
}

func splitComma(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
