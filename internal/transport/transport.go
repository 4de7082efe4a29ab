// Package transport adapts network channels to the connection contract the
// MCP server instance expects: start, send, close, plus callbacks the server
// installs to receive messages.
package transport

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
)

// ErrClosed is returned by Send once a transport has been closed.
var ErrClosed = errors.New("transport closed")

// Handlers are the callbacks a connected server installs on a transport.
// Any of them may be nil.
type Handlers struct {
	OnMessage func(ctx context.Context, msg json.RawMessage)
	OnClose   func()
	OnError   func(err error)
}

// Transport carries JSON-RPC messages between a client and one server instance.
type Transport interface {
	// Bind installs the server's callbacks. It is called before Start.
	Bind(h Handlers)
	Start(ctx context.Context) error
	Send(ctx context.Context, msg mcp.JSONRPCMessage) error
	Close() error
	// ID identifies the transport in logs.
	ID() string
}
