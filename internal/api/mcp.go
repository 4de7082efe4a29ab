package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/gaspardpetit/rechtsinfo-mcp/internal/logx"
	"github.com/gaspardpetit/rechtsinfo-mcp/internal/metrics"
	"github.com/gaspardpetit/rechtsinfo-mcp/internal/serverstate"
	"github.com/gaspardpetit/rechtsinfo-mcp/internal/transport"
)

// Connector is a protocol server that can be attached to a transport.
type Connector interface {
	Connect(ctx context.Context, t transport.Transport) error
}

// ServerFactory builds a fresh protocol server instance.
type ServerFactory func() Connector

// Outcome labels for the request metrics.
const (
	outcomeOK           = "ok"
	outcomeNotification = "notification"
	outcomeError        = "error"
	outcomeTimeout      = "timeout"
	outcomeCanceled     = "canceled"
	outcomeTooLarge     = "too_large"
	outcomeDraining     = "draining"
)

var errNotObject = errors.New("request body is not a JSON object")

// inbound is the routing view of a JSON-RPC message.
type inbound struct {
	raw    json.RawMessage
	method string
	// reply is false for notifications and for responses to server requests.
	reply bool
}

// MCPHandler serves POST /mcp. Every call gets its own protocol server and
// single-shot transport; the first message the server sends becomes the
// response. A call that produces no message within timeout is answered with
// 504.
func MCPHandler(newServer ServerFactory, timeout time.Duration, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := logx.Log.With().Str("request_id", chiMiddleware.GetReqID(r.Context())).Logger()

		if serverstate.IsDraining() {
			writeError(w, http.StatusServiceUnavailable)
			metrics.RecordMCPRequest("http", outcomeDraining, time.Since(start))
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				log.Warn().Int64("limit", tooLarge.Limit).Msg("request body too large")
				writeError(w, http.StatusRequestEntityTooLarge)
				metrics.RecordMCPRequest("http", outcomeTooLarge, time.Since(start))
				return
			}
			log.Error().Err(err).Msg("read request body")
			writeError(w, http.StatusInternalServerError)
			metrics.RecordMCPRequest("http", outcomeError, time.Since(start))
			return
		}

		msg, err := parseInbound(body)
		if err != nil {
			log.Error().Err(err).Msg("invalid JSON-RPC request")
			writeError(w, http.StatusInternalServerError)
			metrics.RecordMCPRequest("http", outcomeError, time.Since(start))
			return
		}
		log = log.With().Str("rpc_method", msg.method).Logger()

		// The 504 is settled before the server context is cancelled, so a
		// handler that reacts to cancellation cannot answer first.
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		tr := transport.NewSingleShot(w)
		failed := make(chan error, 1)
		go func() {
			failed <- deliver(ctx, newServer, tr, msg)
		}()

		outcome := outcomeOK
		select {
		case <-tr.Done():
		case err := <-failed:
			switch {
			case err != nil:
				log.Error().Err(err).Msg("handle MCP request")
				if tr.Respond(http.StatusInternalServerError, errorBody(http.StatusInternalServerError)) {
					outcome = outcomeError
				}
			case !msg.reply:
				if tr.Respond(http.StatusAccepted, nil) {
					outcome = outcomeNotification
				}
			default:
				// Delivered without a reply yet; the server may still answer.
				outcome = await(r.Context(), timer.C, tr, &log)
			}
		case <-timer.C:
			outcome = settleTimeout(tr, &log)
		case <-r.Context().Done():
			outcome = abandon(tr, &log)
		}
		cancel()
		metrics.RecordMCPRequest("http", outcome, time.Since(start))
		log.Debug().Str("outcome", outcome).Int("status", tr.Status()).Dur("took", time.Since(start)).Msg("mcp request")
	}
}

func await(reqCtx context.Context, deadline <-chan time.Time, tr *transport.SingleShot, log *zerolog.Logger) string {
	select {
	case <-tr.Done():
		return outcomeOK
	case <-deadline:
		return settleTimeout(tr, log)
	case <-reqCtx.Done():
		return abandon(tr, log)
	}
}

// settleTimeout settles tr with 504 unless a response already won.
func settleTimeout(tr *transport.SingleShot, log *zerolog.Logger) string {
	if tr.Respond(http.StatusGatewayTimeout, errorBody(http.StatusGatewayTimeout)) {
		log.Warn().Msg("MCP server produced no response in time")
		return outcomeTimeout
	}
	return outcomeOK
}

// abandon settles tr without writing once the client went away.
func abandon(tr *transport.SingleShot, log *zerolog.Logger) string {
	if tr.Abandon() {
		log.Info().Msg("client went away")
		return outcomeCanceled
	}
	return outcomeOK
}

// deliver connects a new server to tr and hands it msg. Panics are returned
// as errors.
func deliver(ctx context.Context, newServer ServerFactory, tr *transport.SingleShot, msg inbound) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	if err := newServer().Connect(ctx, tr); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	tr.ReceiveRequest(ctx, msg.raw)
	return nil
}

// parseInbound validates body as a single JSON-RPC object and fills in a
// missing "jsonrpc" member, which some HTTP clients leave out.
func parseInbound(body []byte) (inbound, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return inbound{}, fmt.Errorf("%w: %v", errNotObject, err)
	}
	if fields == nil {
		return inbound{}, errNotObject
	}
	var msg inbound
	if m, ok := fields["method"]; ok {
		if err := json.Unmarshal(m, &msg.method); err != nil {
			return inbound{}, fmt.Errorf("invalid method: %w", err)
		}
	}
	id, hasID := fields["id"]
	msg.reply = msg.method != "" && hasID && string(id) != "null"
	if _, ok := fields["jsonrpc"]; !ok {
		fields["jsonrpc"] = json.RawMessage(`"2.0"`)
		b, err := json.Marshal(fields)
		if err != nil {
			return inbound{}, err
		}
		msg.raw = b
	} else {
		msg.raw = json.RawMessage(body)
	}
	return msg, nil
}
