package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"launchpad/rpc"
)

const wsReadLimit = 8 << 20

// Conn is a persistent JSON-RPC session over the node's /ws endpoint. Calls
// are serialised; each request waits for its own response frame.
type Conn struct {
	client *Client
	mu     sync.Mutex
	ws     *websocket.Conn
}

func (c *Client) wsURL() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("rpc client: parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("rpc client: unsupported endpoint scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

// Dial opens a websocket session. The bearer token, when configured, is sent
// once on the upgrade request and covers every call made on the session.
func (c *Client) Dial(ctx context.Context) (*Conn, error) {
	target, err := c.wsURL()
	if err != nil {
		return nil, err
	}
	opts := &websocket.DialOptions{}
	if c.token != nil {
		token, err := c.token()
		if err != nil {
			return nil, fmt.Errorf("rpc token: %w", err)
		}
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + token}}
	}
	ws, _, err := websocket.Dial(ctx, target, opts)
	if err != nil {
		return nil, fmt.Errorf("rpc client: dial %s: %w", target, err)
	}
	ws.SetReadLimit(wsReadLimit)
	return &Conn{client: c, ws: ws}, nil
}

// Call invokes method on the session and decodes the result into out.
func (c *Conn) Call(ctx context.Context, method string, out interface{}, params ...interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	id := c.client.nextID.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := wsjson.Write(ctx, c.ws, request{JSONRPC: "2.0", Method: method, Params: params, ID: id}); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}
	var decoded response
	if err := wsjson.Read(ctx, c.ws, &decoded); err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	if decoded.Error == nil && decoded.ID != id {
		return fmt.Errorf("rpc client: response id %d does not match request %d", decoded.ID, id)
	}
	return decoded.into(method, out)
}

// Events runs lp_getEvents on the session.
func (c *Conn) Events(ctx context.Context, query rpc.EventQuery) ([]rpc.EventResult, error) {
	var out []rpc.EventResult
	err := c.Call(ctx, "lp_getEvents", &out, query)
	return out, err
}

func (c *Conn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "")
}
