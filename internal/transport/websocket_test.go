package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/mark3labs/mcp-go/mcp"
)

type wsResult struct {
	tr     *WebSocket
	closed chan struct{}
	errs   chan error
}

func newEchoServer(t *testing.T) (*httptest.Server, chan *wsResult) {
	t.Helper()
	results := make(chan *wsResult, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		tr := NewWebSocket(c)
		res := &wsResult{tr: tr, closed: make(chan struct{}), errs: make(chan error, 4)}
		tr.Bind(Handlers{
			OnMessage: func(ctx context.Context, msg json.RawMessage) {
				var req struct {
					ID int64 `json:"id"`
				}
				_ = json.Unmarshal(msg, &req)
				_ = tr.Send(ctx, mcp.NewJSONRPCResultResponse(mcp.NewRequestId(req.ID), map[string]string{"echo": string(msg)}))
			},
			OnClose: func() { close(res.closed) },
			OnError: func(err error) { res.errs <- err },
		})
		if err := tr.Start(r.Context()); err != nil {
			t.Errorf("start: %v", err)
			return
		}
		results <- res
		<-tr.Done()
	}))
	return ts, results
}

func TestWebSocketRoundTrip(t *testing.T) {
	ts, results := newEchoServer(t)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	res := <-results

	if err := c.Write(ctx, websocket.MessageText, []byte(`{"jsonrpc":"2.0","id":42,"method":"ping"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, data, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got struct {
		ID     int               `json:"id"`
		Result map[string]string `json:"result"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != 42 || !strings.Contains(got.Result["echo"], `"ping"`) {
		t.Fatalf("response = %s", data)
	}

	_ = c.Close(websocket.StatusNormalClosure, "bye")
	select {
	case <-res.closed:
	case <-ctx.Done():
		t.Fatalf("OnClose not called")
	}
	select {
	case err := <-res.errs:
		t.Fatalf("unexpected OnError after normal closure: %v", err)
	default:
	}
	if err := res.tr.Send(ctx, mcp.NewJSONRPCResultResponse(mcp.NewRequestId(int64(1)), struct{}{})); err != ErrClosed {
		t.Fatalf("send after close = %v; want ErrClosed", err)
	}
}

func TestWebSocketServerClose(t *testing.T) {
	ts, results := newEchoServer(t)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = c.CloseNow() }()
	res := <-results

	go func() { _ = res.tr.Close() }()
	if _, _, err := c.Read(ctx); websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		t.Fatalf("client read err = %v; want normal closure", err)
	}
	select {
	case <-res.tr.Done():
	case <-ctx.Done():
		t.Fatalf("transport did not finish after Close")
	}
}
