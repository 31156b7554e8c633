package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nhooyr.io/websocket"
)

const wsWriteTimeout = 10 * time.Second

// handleWS serves JSON-RPC over a websocket. Each text frame carries one
// request and is answered by exactly one response frame; the connection
// never sends unsolicited messages. Authentication and rate limiting use
// the headers and remote address of the upgrade request.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	// Connections outlive the per-request write deadline.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns()})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(s.cfg.MaxBodyBytes)

	ctx := r.Context()
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				s.logger.Debug("websocket read failed",
					slog.String("request_id", requestIDFrom(ctx)),
					slog.String("error", err.Error()))
			}
			return
		}
		if msgType != websocket.MessageText {
			conn.Close(websocket.StatusUnsupportedData, "text frames only")
			return
		}
		reply := s.serveFrame(r, data)
		writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
		err = conn.Write(writeCtx, websocket.MessageText, reply)
		cancel()
		if err != nil {
			return
		}
	}
}

// serveFrame decodes a single request frame and returns the encoded response.
func (s *Server) serveFrame(r *http.Request, data []byte) []byte {
	rec := newFrameWriter()
	req := &RPCRequest{}
	if err := json.Unmarshal(data, req); err != nil {
		writeError(rec, http.StatusBadRequest, nil, codeParseError, "failed to parse request", err.Error())
		return rec.body.Bytes()
	}
	if req.JSONRPC != jsonRPCVersion || strings.TrimSpace(req.Method) == "" {
		writeError(rec, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid JSON-RPC request", nil)
		return rec.body.Bytes()
	}
	s.dispatch(rec, r, req)
	return bytes.TrimSpace(rec.body.Bytes())
}

// frameWriter collects a handler's output for a websocket frame. The HTTP
// status is irrelevant on an upgraded connection and is discarded.
type frameWriter struct {
	header http.Header
	body   bytes.Buffer
}

func newFrameWriter() *frameWriter {
	return &frameWriter{header: make(http.Header)}
}

func (f *frameWriter) Header() http.Header         { return f.header }
func (f *frameWriter) Write(p []byte) (int, error) { return f.body.Write(p) }
func (f *frameWriter) WriteHeader(int)             {}

// originPatterns converts the configured CORS origins into the host patterns
// the websocket handshake checks.
func (s *Server) originPatterns() []string {
	patterns := make([]string, 0, len(s.cfg.AllowedOrigins))
	for _, origin := range s.cfg.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			origin = u.Host
		}
		patterns = append(patterns, origin)
	}
	return patterns
}
