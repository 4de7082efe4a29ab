// Package mcpserver builds the MCP protocol server that exposes the legal
// lookup tools and connects it to a transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	sdkserver "github.com/mark3labs/mcp-go/server"

	"github.com/gaspardpetit/rechtsinfo-mcp/internal/logx"
	"github.com/gaspardpetit/rechtsinfo-mcp/internal/metrics"
	"github.com/gaspardpetit/rechtsinfo-mcp/internal/rechtsinfo"
	"github.com/gaspardpetit/rechtsinfo-mcp/internal/transport"
)

const instructions = "Lookup tools for German federal law and case law published on rechtsinformationen.bund.de. " +
	"Search first, then fetch a single decision by document number or a norm by its ELI."

// Lookup is the legal information backend used by the tools.
type Lookup interface {
	SearchLegislation(ctx context.Context, q rechtsinfo.Query) (*rechtsinfo.SearchResult, error)
	SearchCaseLaw(ctx context.Context, q rechtsinfo.Query) (*rechtsinfo.SearchResult, error)
	SearchDocuments(ctx context.Context, q rechtsinfo.Query) (*rechtsinfo.SearchResult, error)
	CaseLaw(ctx context.Context, documentNumber string) (*rechtsinfo.Item, error)
	Legislation(ctx context.Context, eli string) (*rechtsinfo.Item, error)
}

// Options configure a Server.
type Options struct {
	Name    string
	Version string
	Lookup  Lookup
}

// Server is one protocol server instance with the legal tools registered.
type Server struct {
	mcp *sdkserver.MCPServer
}

// New constructs a Server. It is cheap enough to build one per request.
func New(opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "rechtsinformationen-bund-de"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	srv := sdkserver.NewMCPServer(
		opts.Name,
		opts.Version,
		sdkserver.WithToolCapabilities(false),
		sdkserver.WithInstructions(instructions),
		sdkserver.WithToolHandlerMiddleware(instrumentTool),
		sdkserver.WithRecovery(),
	)
	registerTools(srv, opts.Lookup)
	return &Server{mcp: srv}
}

// MCP exposes the underlying mcp-go server, e.g. for the SDK's SSE transport.
func (s *Server) MCP() *sdkserver.MCPServer { return s.mcp }

// Connect binds the server to t and starts it. Every inbound message is
// dispatched to the protocol server; a non-nil reply is sent back on t.
func (s *Server) Connect(ctx context.Context, t transport.Transport) error {
	log := logx.Log.With().Str("transport_id", t.ID()).Logger()
	t.Bind(transport.Handlers{
		OnMessage: func(ctx context.Context, msg json.RawMessage) {
			resp := s.mcp.HandleMessage(ctx, msg)
			if resp == nil {
				return
			}
			if err := t.Send(ctx, resp); err != nil {
				log.Warn().Err(err).Msg("send response")
			}
		},
		OnError: func(err error) {
			log.Warn().Err(err).Msg("transport error")
		},
		OnClose: func() {
			log.Debug().Msg("transport closed")
		},
	})
	if err := t.Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	return nil
}

func instrumentTool(next sdkserver.ToolHandlerFunc) sdkserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		res, err := next(ctx, req)
		ok := err == nil && (res == nil || !res.IsError)
		metrics.RecordToolCall(req.Params.Name, ok, time.Since(start))
		ev := logx.Log.Debug()
		if !ok {
			ev = logx.Log.Info()
		}
		ev.Str("tool", req.Params.Name).Bool("ok", ok).Dur("took", time.Since(start)).Msg("tool call")
		return res, err
	}
}
