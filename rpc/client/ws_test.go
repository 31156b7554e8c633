package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"launchpad/rpc"
)

func TestWSURL(t *testing.T) {
	c, err := New("https://node.example:8545/rpc/", Options{})
	require.NoError(t, err)
	got, err := c.wsURL()
	require.NoError(t, err)
	require.Equal(t, "wss://node.example:8545/rpc/ws", got)

	c, err = New("http://127.0.0.1:8545", Options{})
	require.NoError(t, err)
	got, err = c.wsURL()
	require.NoError(t, err)
	require.Equal(t, "ws://127.0.0.1:8545/ws", got)

	c, err = New("ftp://node", Options{})
	require.NoError(t, err)
	_, err = c.wsURL()
	require.Error(t, err)
}

func TestConnCallRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ws", r.URL.Path)
		require.Equal(t, "Bearer session-token", r.Header.Get("Authorization"))
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		for {
			var req rpc.RPCRequest
			if err := wsjson.Read(r.Context(), conn, &req); err != nil {
				return
			}
			resp := rpc.RPCResponse{JSONRPC: "2.0", ID: req.ID}
			switch req.Method {
			case "lp_getNonce":
				resp.Result = 9
			case "lp_getEvents":
				resp.Result = []rpc.EventResult{{Type: "presale.purchased", Height: 3}}
			default:
				resp.Error = &rpc.RPCError{Code: -32601, Message: "unknown method"}
			}
			if err := wsjson.Write(r.Context(), conn, resp); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, Options{Token: func() (string, error) { return "session-token", nil }})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := c.Dial(ctx)
	require.NoError(t, err)
	defer conn.Close()

	var nonce uint64
	require.NoError(t, conn.Call(ctx, "lp_getNonce", &nonce, "0x00"))
	require.Equal(t, uint64(9), nonce)

	events, err := conn.Events(ctx, rpc.EventQuery{FromHeight: 3})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "presale.purchased", events[0].Type)

	err = conn.Call(ctx, "nope", nil)
	var rpcErr *rpc.RPCError
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, -32601, rpcErr.Code)
}
