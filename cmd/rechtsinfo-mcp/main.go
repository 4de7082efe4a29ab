package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gaspardpetit/rechtsinfo-mcp/internal/cache"
	"github.com/gaspardpetit/rechtsinfo-mcp/internal/config"
	"github.com/gaspardpetit/rechtsinfo-mcp/internal/logx"
	"github.com/gaspardpetit/rechtsinfo-mcp/internal/metrics"
	"github.com/gaspardpetit/rechtsinfo-mcp/internal/rechtsinfo"
	"github.com/gaspardpetit/rechtsinfo-mcp/internal/server"
	"github.com/gaspardpetit/rechtsinfo-mcp/internal/serverstate"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

const memoryCacheEntries = 2048

// configPathFromArgs finds an explicit -config/--config argument before the
// flags are parsed, so the file can be loaded underneath env and flags.
func configPathFromArgs(args []string) string {
	for i, a := range args {
		if a == "--" {
			break
		}
		name, val, hasVal := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasVal {
			return val
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func loadConfig(args []string) (config.ServerConfig, error) {
	path := configPathFromArgs(args)
	if path == "" {
		path = config.GetEnv("CONFIG_FILE", config.DefaultConfigPath("server.yaml"))
	}
	var cfg config.ServerConfig
	if err := cfg.LoadFile(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	cfg.ConfigFile = path
	cfg.SetDefaults()
	cfg.ApplyEnv()
	return cfg, nil
}

func newCache(ctx context.Context, cfg config.ServerConfig) (cache.Store, func(), error) {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryStore(memoryCacheEntries), func() {}, nil
	}
	rs, err := cache.NewRedisStore(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	return rs, func() { _ = rs.Close() }, nil
}

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		logx.Log.Fatal().Err(err).Msg("load config")
	}
	portBeforeFlags := cfg.Port
	cfg.BindFlagsFromCurrent()
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "rechtsinfo-mcp version=%s sha=%s date=%s\n\n", version, buildSHA, buildDate)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVersion {
		fmt.Printf("rechtsinfo-mcp version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return
	}
	metricsFlag := false
	flag.Visit(func(f *flag.Flag) { metricsFlag = metricsFlag || f.Name == "metrics-port" })
	if !metricsFlag && cfg.MetricsAddr == fmt.Sprintf(":%d", portBeforeFlags) {
		cfg.MetricsAddr = fmt.Sprintf(":%d", cfg.Port)
	}
	cfg.Mode = strings.ToLower(cfg.Mode)

	logx.Configure(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logx.Log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var opts []rechtsinfo.Option
	opts = append(opts, rechtsinfo.WithHTTPClient(&http.Client{Timeout: cfg.UpstreamTimeout}))
	if cfg.CacheTTL > 0 {
		store, closeStore, err := newCache(ctx, cfg)
		if err != nil {
			logx.Log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("connect redis")
		}
		defer closeStore()
		if cfg.RedisAddr != "" {
			logx.Log.Info().Str("addr", cfg.RedisAddr).Msg("using redis lookup cache")
		}
		opts = append(opts, rechtsinfo.WithCache(store, cfg.CacheTTL))
	}
	lookup := rechtsinfo.New(cfg.UpstreamURL, opts...)

	metrics.SetServerBuildInfo(version, buildSHA, buildDate)
	handler := server.New(cfg, lookup, version)
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	var metricsSrv *http.Server
	if cfg.MetricsAddr != fmt.Sprintf(":%d", cfg.Port) {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range sigCh {
			if serverstate.IsDraining() || cfg.DrainTimeout == 0 {
				logx.Log.Warn().Msg("termination requested")
				cancel()
				return
			}
			serverstate.StartDrain()
			logx.Log.Info().Dur("timeout", cfg.DrainTimeout).Msg("draining; send SIGTERM again to terminate immediately")
			go func(d time.Duration) {
				time.Sleep(d)
				if serverstate.IsDraining() {
					logx.Log.Warn().Msg("drain timeout exceeded; terminating")
					cancel()
				}
			}(cfg.DrainTimeout)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := handler.Shutdown(shutdownCtx); err != nil {
			logx.Log.Error().Err(err).Msg("sse shutdown")
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logx.Log.Error().Err(err).Msg("server shutdown")
		}
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				logx.Log.Error().Err(err).Msg("metrics server shutdown")
			}
		}
	}()

	if metricsSrv != nil {
		go func() {
			logx.Log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server starting")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logx.Log.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	serverstate.SetMode(cfg.Mode)
	serverstate.SetState(serverstate.StatusReady)
	logx.Log.Info().Int("port", cfg.Port).Str("mode", cfg.Mode).Str("upstream", cfg.UpstreamURL).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logx.Log.Fatal().Err(err).Msg("server error")
	}
	logx.Log.Info().Msg("server stopped")
}
