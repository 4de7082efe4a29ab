package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/gaspardpetit/rechtsinfo-mcp/internal/logx"
	"github.com/gaspardpetit/rechtsinfo-mcp/internal/metrics"
	"github.com/gaspardpetit/rechtsinfo-mcp/internal/serverstate"
	"github.com/gaspardpetit/rechtsinfo-mcp/internal/transport"
)

// WSHandler serves GET /ws. Each connection gets its own protocol server
// which keeps its session for the lifetime of the socket.
func WSHandler(newServer ServerFactory, allowedOrigins []string) http.HandlerFunc {
	opts := &websocket.AcceptOptions{OriginPatterns: originPatterns(allowedOrigins)}
	return func(w http.ResponseWriter, r *http.Request) {
		log := logx.Log.With().Str("request_id", chiMiddleware.GetReqID(r.Context())).Logger()
		if serverstate.IsDraining() {
			writeError(w, http.StatusServiceUnavailable)
			return
		}
		c, err := websocket.Accept(w, r, opts)
		if err != nil {
			log.Warn().Err(err).Msg("websocket accept")
			return
		}
		tr := transport.NewWebSocket(c)
		log = log.With().Str("transport_id", tr.ID()).Logger()

		metrics.ConnectionOpened("ws")
		defer metrics.ConnectionClosed("ws")

		if err := newServer().Connect(r.Context(), tr); err != nil {
			log.Error().Err(err).Msg("connect websocket transport")
			_ = c.Close(websocket.StatusInternalError, "connect failed")
			return
		}
		log.Info().Msg("websocket connected")
		<-tr.Done()
		log.Info().Msg("websocket disconnected")
	}
}

// originPatterns converts CORS origins into the host patterns the websocket
// library matches against.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if strings.Contains(o, "://") {
			if u, err := url.Parse(o); err == nil && u.Host != "" {
				o = u.Host
			}
		}
		out = append(out, o)
	}
	return out
}
