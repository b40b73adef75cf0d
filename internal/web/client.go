package web

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/codefionn/pulseterm/internal/logger"
	"github.com/codefionn/pulseterm/internal/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

// Notices sent for requests the service refuses
const (
	NoticeEmptyQuestion  = "Question cannot be empty."
	NoticeInvalidRequest = "Invalid request."
)

var errClientClosed = errors.New("client connection closed")

// Client is one websocket connection to the stand-in service
type Client struct {
	ID        string
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	responder Responder
	log       *logger.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a new websocket client
func NewClient(hub *Hub, conn *websocket.Conn, responder Responder, log *logger.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()

	return &Client{
		ID:        id,
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		responder: responder,
		log:       log.WithPrefix(id[:8]),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// ReadPump reads questions and answers them one at a time
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.shutdown()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("read error: %v", err)
			}
			return
		}
		c.handleMessage(message)
	}
}

// WritePump pumps queued frames to the websocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("write failed: %v", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *Client) handleMessage(message []byte) {
	var req protocol.Question
	if err := json.Unmarshal(message, &req); err != nil {
		c.log.Debug("invalid request: %v", err)
		c.Send(protocol.Error{Detail: NoticeInvalidRequest})
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		c.Send(protocol.Error{Detail: NoticeEmptyQuestion})
		return
	}

	c.log.Info("query: %.60s", question)
	start := time.Now()

	if err := c.responder.Respond(c.ctx, question, c); err != nil {
		if errors.Is(err, errClientClosed) || c.ctx.Err() != nil {
			return
		}
		c.log.Warn("responder failed: %v", err)
		c.Send(protocol.Error{Detail: err.Error()})
		return
	}
	c.log.Info("answered in %s", time.Since(start).Round(time.Millisecond))
}

// Send queues an event for the peer
func (c *Client) Send(ev protocol.Event) error {
	frame, err := protocol.Encode(ev)
	if err != nil {
		return err
	}
	return c.SendRaw(frame)
}

// SendRaw queues a frame verbatim, waiting while the queue is full
func (c *Client) SendRaw(frame []byte) error {
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return errClientClosed
	}
}

// trySend queues a frame without waiting
func (c *Client) trySend(frame []byte) error {
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return errClientClosed
	default:
		return errors.New("send queue full")
	}
}

// drop closes the underlying connection without a close frame and abandons
// the answer in progress
func (c *Client) drop() {
	c.cancel()
	c.conn.NetConn().Close()
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.done)
		c.conn.Close()
	})
}
