package socketclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/codefionn/pulseterm/internal/consts"
	"github.com/gorilla/websocket"
)

// Conn is one open transport connection. ReadMessage blocks until a frame
// arrives or the connection fails; WriteMessage must be safe to call
// concurrently with ReadMessage and Close.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens transport connections
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials the service with gorilla/websocket
type WebsocketDialer struct {
	Dialer       *websocket.Dialer
	ReadLimit    int64
	WriteTimeout time.Duration
}

// NewWebsocketDialer creates a dialer honoring the client's limits
func NewWebsocketDialer(cfg *Config) *WebsocketDialer {
	return &WebsocketDialer{
		Dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.ConnectTimeout,
			ReadBufferSize:   consts.BufferSize1KB,
			WriteBufferSize:  consts.BufferSize1KB,
		},
		ReadLimit:    cfg.ReadLimit,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// Dial opens a websocket connection to url
func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s (HTTP %d): %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	if d.ReadLimit > 0 {
		ws.SetReadLimit(d.ReadLimit)
	}

	return &wsConn{ws: ws, writeTimeout: d.WriteTimeout}, nil
}

type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	// gorilla allows one concurrent writer
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
