package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	sdkserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gaspardpetit/rechtsinfo-mcp/internal/api"
	"github.com/gaspardpetit/rechtsinfo-mcp/internal/config"
	"github.com/gaspardpetit/rechtsinfo-mcp/internal/logx"
	"github.com/gaspardpetit/rechtsinfo-mcp/internal/mcpserver"
	"github.com/gaspardpetit/rechtsinfo-mcp/internal/metrics"
	"github.com/gaspardpetit/rechtsinfo-mcp/internal/serverstate"
)

// Server is the HTTP front of the MCP service for the configured mode.
type Server struct {
	http.Handler
	sse *sdkserver.SSEServer
}

// New constructs the HTTP handler for the server.
func New(cfg config.ServerConfig, lookup mcpserver.Lookup, version string) *Server {
	r := chi.NewRouter()
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}))
	}

	preg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = preg
	prometheus.DefaultGatherer = preg
	metrics.Register(preg)

	opts := mcpserver.Options{Version: version, Lookup: lookup}
	s := &Server{Handler: r}

	r.Get("/healthz", HealthHandler())
	if cfg.MetricsAddr == fmt.Sprintf(":%d", cfg.Port) {
		r.Handle("/metrics", promhttp.HandlerFor(preg, promhttp.HandlerOpts{}))
	}

	switch cfg.Mode {
	case config.ModeSSE:
		// One shared instance; the SDK keys sessions by the id it hands out
		// in the endpoint event.
		s.sse = sdkserver.NewSSEServer(mcpserver.New(opts).MCP(),
			sdkserver.WithSSEEndpoint("/sse"),
			sdkserver.WithMessageEndpoint("/messages"),
			sdkserver.WithKeepAlive(true),
		)
		r.Group(func(r chi.Router) {
			for _, m := range api.Middleware() {
				r.Use(m)
			}
			r.Get("/", api.BannerHandler(api.SSEBanner))
			r.Get("/sse", sseStream(s.sse.SSEHandler()))
			r.Post("/messages", s.sse.MessageHandler().ServeHTTP)
		})
	default:
		factory := func() api.Connector { return mcpserver.New(opts) }
		r.Mount("/", api.NewRouter(factory, api.Options{
			RequestTimeout:  cfg.RequestTimeout,
			MaxRequestBytes: cfg.MaxRequestBytes,
			AllowedOrigins:  cfg.AllowedOrigins,
		}))
	}
	return s
}

// Shutdown closes open SSE sessions. It is a no-op in HTTP mode.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.sse == nil {
		return nil
	}
	return s.sse.Shutdown(ctx)
}

// HealthHandler reports the server state as JSON; 503 while draining.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := serverstate.Load()
		w.Header().Set("Content-Type", "application/json")
		if st.Draining {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(st); err != nil {
			logx.Log.Error().Err(err).Msg("encode health")
		}
	}
}

func sseStream(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if serverstate.IsDraining() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"Service Unavailable"}`))
			return
		}
		metrics.ConnectionOpened("sse")
		defer metrics.ConnectionClosed("sse")
		logx.Log.Info().Str("remote", r.RemoteAddr).Msg("sse connection opened")
		next.ServeHTTP(w, r)
		logx.Log.Info().Str("remote", r.RemoteAddr).Msg("sse connection closed")
	}
}
