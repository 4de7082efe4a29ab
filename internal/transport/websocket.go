package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// WebSocket is a persistent duplex transport: every text frame read from the
// connection is one inbound JSON-RPC message and every Send writes one frame.
type WebSocket struct {
	id   string
	conn *websocket.Conn

	mu       sync.Mutex
	handlers Handlers
	closed   bool

	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocket wraps an accepted connection.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	return &WebSocket{id: uuid.NewString(), conn: conn, done: make(chan struct{})}
}

func (t *WebSocket) ID() string { return t.id }

func (t *WebSocket) Bind(h Handlers) {
	t.mu.Lock()
	t.handlers = h
	t.mu.Unlock()
}

// Start launches the read loop. It returns immediately; Done is closed when
// the connection ends.
func (t *WebSocket) Start(ctx context.Context) error {
	if t.isClosed() {
		return ErrClosed
	}
	go t.readLoop(ctx)
	return nil
}

func (t *WebSocket) readLoop(ctx context.Context) {
	defer t.finish()
	for {
		typ, data, err := t.conn.Read(ctx)
		if err != nil {
			if !isNormalClose(err) && ctx.Err() == nil && !t.isClosed() {
				t.reportError(err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		t.mu.Lock()
		fn := t.handlers.OnMessage
		t.mu.Unlock()
		if fn != nil {
			// Handled concurrently so a slow tool call does not stall pings
			// or cancellation notifications on the same connection.
			go fn(ctx, json.RawMessage(data))
		}
	}
}

func (t *WebSocket) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func isNormalClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return errors.Is(err, context.Canceled)
}

func (t *WebSocket) reportError(err error) {
	t.mu.Lock()
	fn := t.handlers.OnError
	t.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (t *WebSocket) finish() {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		fn := t.handlers.OnClose
		t.mu.Unlock()
		if fn != nil {
			fn()
		}
		close(t.done)
	})
}

// Send writes msg as one text frame.
func (t *WebSocket) Send(ctx context.Context, msg mcp.JSONRPCMessage) error {
	if t.isClosed() {
		return ErrClosed
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return t.conn.Write(ctx, websocket.MessageText, b)
}

// Close ends the connection with a normal closure.
func (t *WebSocket) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	return t.conn.Close(websocket.StatusNormalClosure, "closing")
}

// Done is closed when the read loop has exited.
func (t *WebSocket) Done() <-chan struct{} { return t.done }
