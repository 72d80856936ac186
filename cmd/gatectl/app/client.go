package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/autopeer-io/autogate/internal/gateagent/bridge"
	"github.com/autopeer-io/autogate/internal/gateagent/controller"
	"github.com/autopeer-io/autogate/internal/gateagent/protocol"
	"github.com/autopeer-io/autogate/internal/gateagent/server"
)

// Client talks to the operator API of one gate agent.
type Client struct {
	base string
	http *http.Client
}

func NewClient(base string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) Status(ctx context.Context) (controller.Status, error) {
	var st controller.Status
	err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &st)
	return st, err
}

func (c *Client) Barrier(ctx context.Context, gate, action string) (server.BarrierResponse, error) {
	var out server.BarrierResponse
	path := fmt.Sprintf("/api/v1/barriers/%s/%s", url.PathEscape(gate), url.PathEscape(action))
	err := c.do(ctx, http.MethodPost, path, nil, &out)
	return out, err
}

func (c *Client) SetDistance(ctx context.Context, gate string, dist int) error {
	path := fmt.Sprintf("/api/v1/sim/gates/%s/distance", url.PathEscape(gate))
	return c.do(ctx, http.MethodPut, path, server.DistanceRequest{Distance: &dist}, nil)
}

// wsURL maps the base URL onto the websocket scheme.
func (c *Client) wsURL(path string) (string, error) {
	u, err := url.Parse(c.base + path)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

func (c *Client) dial(ctx context.Context, path string) (*websocket.Conn, error) {
	target, err := c.wsURL(path)
	if err != nil {
		return nil, err
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s", path, resp.Status)
		}
		return nil, err
	}
	return conn, nil
}

// WatchBridge calls fn for every connectivity update until ctx is done or the
// stream ends.
func (c *Client) WatchBridge(ctx context.Context, fn func(bridge.Status)) error {
	conn, err := c.dial(ctx, "/api/v1/bridge/stream")
	if err != nil {
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var st bridge.Status
		if err := conn.ReadJSON(&st); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		fn(st)
	}
}

// Present plays the vehicle side of one link transaction: Ready, wait for
// the info request, send info, hang up.
func (c *Client) Present(ctx context.Context, linkPath string, info protocol.Command, payload []byte, wait time.Duration) error {
	ready, err := protocol.Encode(protocol.CmdReady, nil)
	if err != nil {
		return err
	}
	frame, err := protocol.Encode(info, payload)
	if err != nil {
		return err
	}

	conn, err := c.dial(ctx, linkPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.BinaryMessage, ready); err != nil {
		return fmt.Errorf("send ready: %w", err)
	}

	deadline := time.Now().Add(wait)
	for {
		_ = conn.SetReadDeadline(deadline)
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("waiting for info request: %w", err)
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		f, err := protocol.Decode(data)
		if err == nil && f.Command == protocol.CmdInfoRequest {
			break
		}
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("send %s: %w", info, err)
	}

	bye := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	return conn.WriteControl(websocket.CloseMessage, bye, time.Now().Add(time.Second))
}
