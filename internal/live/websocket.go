package live

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultReadLimit        = 1 << 20
	closeWriteWait          = time.Second
)

// WebsocketConfig configures the gorilla/websocket dialer.
type WebsocketConfig struct {
	// Token is sent as a bearer Authorization header when set.
	Token            string
	HandshakeTimeout time.Duration
	// ReadLimit caps a single inbound frame in bytes.
	ReadLimit int64
}

// WebsocketDialer dials live endpoints with gorilla/websocket.
type WebsocketDialer struct {
	token     string
	readLimit int64
	dialer    *websocket.Dialer
}

// NewWebsocketDialer builds a dialer from cfg, applying defaults.
func NewWebsocketDialer(cfg WebsocketConfig) *WebsocketDialer {
	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	limit := cfg.ReadLimit
	if limit <= 0 {
		limit = defaultReadLimit
	}
	return &WebsocketDialer{
		token:     strings.TrimSpace(cfg.Token),
		readLimit: limit,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: timeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  1024,
		},
	}
}

// Dial opens the websocket. Routing is fully determined by endpoint; nothing
// is written after the handshake.
func (d *WebsocketDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	header := http.Header{}
	if d.token != "" {
		header.Set("Authorization", "Bearer "+d.token)
	}
	conn, resp, err := d.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial live channel: %w (http %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial live channel: %w", err)
	}
	conn.SetReadLimit(d.readLimit)
	return &websocketConn{conn: conn}, nil
}

type websocketConn struct {
	conn *websocket.Conn
}

func (c *websocketConn) ReadMessage() (int, []byte, error) {
	typ, data, err := c.conn.ReadMessage()
	if err != nil && websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return typ, nil, io.EOF
	}
	return typ, data, err
}

func (c *websocketConn) Close() error {
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeWriteWait),
	)
	return c.conn.Close()
}
