package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// SingleShot serves one HTTP request/response cycle as if it were a
// connection. The first outbound message becomes the response body; every
// later message is dropped.
//
// The response is a one-shot slot: whoever settles it first (Send or
// Respond) writes the response, under the same lock that marks it settled,
// so nothing can touch the ResponseWriter once the handler has moved on.
type SingleShot struct {
	id string
	w  http.ResponseWriter

	mu       sync.Mutex
	handlers Handlers
	sent     bool
	status   int
	done     chan struct{}
}

// NewSingleShot returns a transport writing to w.
func NewSingleShot(w http.ResponseWriter) *SingleShot {
	return &SingleShot{id: uuid.NewString(), w: w, done: make(chan struct{})}
}

func (t *SingleShot) ID() string { return t.id }

func (t *SingleShot) Bind(h Handlers) {
	t.mu.Lock()
	t.handlers = h
	t.mu.Unlock()
}

// Start is a no-op; the HTTP response is already open.
func (t *SingleShot) Start(context.Context) error { return nil }

// Send writes msg as a 200 JSON response if nothing has been written yet.
// Subsequent calls are silently ignored.
func (t *SingleShot) Send(_ context.Context, msg mcp.JSONRPCMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	t.settle(http.StatusOK, b)
	return nil
}

// Close is a no-op; the HTTP server owns the response lifecycle.
func (t *SingleShot) Close() error { return nil }

// ReceiveRequest delivers msg to the bound OnMessage callback, synchronously.
func (t *SingleShot) ReceiveRequest(ctx context.Context, msg json.RawMessage) {
	t.mu.Lock()
	fn := t.handlers.OnMessage
	t.mu.Unlock()
	if fn != nil {
		fn(ctx, msg)
	}
}

// Respond settles the slot with status and a JSON body (no body when nil).
// It reports whether this call wrote the response.
func (t *SingleShot) Respond(status int, body any) bool {
	var b []byte
	if body != nil {
		var err error
		if b, err = json.Marshal(body); err != nil {
			return false
		}
	}
	return t.settle(status, b)
}

// Abandon settles the slot without writing anything, e.g. once the client is
// gone. It reports whether the slot was still open.
func (t *SingleShot) Abandon() bool { return t.settle(0, nil) }

func (t *SingleShot) settle(status int, body []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sent {
		return false
	}
	t.sent = true
	t.status = status
	defer close(t.done)
	if status == 0 {
		return true
	}
	if body != nil {
		t.w.Header().Set("Content-Type", "application/json")
	}
	t.w.WriteHeader(status)
	if body != nil {
		_, _ = t.w.Write(body)
	}
	return true
}

// Done is closed once the response has been written.
func (t *SingleShot) Done() <-chan struct{} { return t.done }

// Sent reports whether the response has been written.
func (t *SingleShot) Sent() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent
}

// Status returns the written status code, or 0 before the slot is settled.
func (t *SingleShot) Status() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}
