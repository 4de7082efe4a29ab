package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Banners served on GET /.
const (
	HTTPBanner = "MCP Server is running. Please send POST requests to /mcp"
	SSEBanner  = "MCP Server is running. Connect to /sse for the event stream and POST client messages to /messages"
)

// Options configure the stateless HTTP router.
type Options struct {
	RequestTimeout  time.Duration
	MaxRequestBytes int64
	AllowedOrigins  []string
}

// NewRouter builds the router for the stateless HTTP mode.
func NewRouter(newServer ServerFactory, opts Options) chi.Router {
	r := chi.NewRouter()
	for _, m := range middlewareChain() {
		r.Use(m)
	}
	r.Get("/", BannerHandler(HTTPBanner))
	r.Post("/mcp", MCPHandler(newServer, opts.RequestTimeout, opts.MaxRequestBytes))
	r.Get("/ws", WSHandler(newServer, opts.AllowedOrigins))
	return r
}

// BannerHandler writes text as a plain text 200 response.
func BannerHandler(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(text))
	}
}
