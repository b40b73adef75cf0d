package socketclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/codefionn/pulseterm/internal/consts"
	"github.com/codefionn/pulseterm/internal/logger"
	"github.com/codefionn/pulseterm/internal/protocol"
)

// ConnectionState represents the current state of the websocket connection
type ConnectionState int

const (
	// StateDisconnected indicates the client is not connected
	StateDisconnected ConnectionState = iota
	// StateConnecting indicates a first connection attempt is in progress
	StateConnecting
	// StateConnected indicates the transport is open
	StateConnected
	// StateReconnecting indicates a retry is pending or in progress after a failure
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Config holds client configuration
type Config struct {
	// URL is the websocket endpoint, e.g. ws://localhost:8000/ws
	URL string
	// ConnectTimeout bounds a single dial including the handshake
	ConnectTimeout time.Duration
	// WriteTimeout bounds writing a single frame
	WriteTimeout time.Duration
	// ReadLimit is the maximum inbound frame size in bytes
	ReadLimit int64
	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration
	// MaxDelay caps the delay between retries
	MaxDelay time.Duration
	// MaxRetries is the number of consecutive retries before giving up
	MaxRetries int
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		URL:            fmt.Sprintf("ws://%s:%d%s", consts.DefaultHost, consts.DefaultPort, consts.DefaultPath),
		ConnectTimeout: consts.Timeout10Seconds,
		WriteTimeout:   consts.Timeout10Seconds,
		ReadLimit:      consts.BufferSize64KB,
		BaseDelay:      consts.DefaultBaseDelay,
		MaxDelay:       consts.DefaultMaxDelay,
		MaxRetries:     consts.DefaultMaxRetries,
	}
}

// Validate checks the configuration for unusable values
func (c *Config) Validate() error {
	switch {
	case c.URL == "":
		return errors.New("websocket URL is required")
	case c.BaseDelay <= 0 || c.MaxDelay <= 0:
		return errors.New("retry delays must be positive")
	case c.MaxRetries < 0:
		return errors.New("max retries must not be negative")
	}
	return nil
}

// Handlers receive the client's output. Any field may be nil.
type Handlers struct {
	OnState func(ConnectionState)
	OnEvent func(protocol.Event)
	// OnDrop sees every inbound frame that failed to decode
	OnDrop func(raw []byte, err error)
}

// Observer receives lifecycle signals for instrumentation. Implementations
// must be safe for concurrent use.
type Observer interface {
	StateChanged(state ConnectionState)
	RetryScheduled(attempt int, delay time.Duration)
	PayloadDropped()
	EventReceived(kind string)
}

// Option configures a Client
type Option func(*Client)

// WithDialer replaces the gorilla/websocket dialer
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithScheduler replaces the runtime timer used for retries
func WithScheduler(s Scheduler) Option {
	return func(c *Client) { c.scheduler = s }
}

// WithHandlers sets the initial handlers
func WithHandlers(h Handlers) Option {
	return func(c *Client) { c.handlers = h }
}

// WithObserver attaches an instrumentation observer
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithLogger replaces the client's logger
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// Client is the connection manager for one websocket endpoint
type Client struct {
	config    *Config
	dialer    Dialer
	scheduler Scheduler
	observer  Observer
	log       *logger.Logger

	mu          sync.Mutex
	handlers    Handlers
	state       ConnectionState
	conn        Conn
	generation  uint64
	intentional bool
	dialing     bool
	cancelDial  context.CancelFunc
	retryTimer  Timer
	retryCount  int
	exhausted   bool
	policy      backoff.BackOff

	// pending handler calls, drained by one goroutine at a time
	queue    []func(Handlers)
	draining bool
}

// New creates a new client. A nil config uses DefaultConfig.
func New(config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	cfg := *config
	if cfg.BaseDelay > cfg.MaxDelay {
		cfg.BaseDelay = cfg.MaxDelay
	}

	c := &Client{
		config:    &cfg,
		scheduler: runtimeScheduler{},
		state:     StateDisconnected,
		policy:    newRetryPolicy(cfg.BaseDelay, cfg.MaxDelay, cfg.MaxRetries),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = NewWebsocketDialer(c.config)
	}
	if c.log == nil {
		c.log = logger.Global().WithPrefix("socket")
	}

	return c, nil
}

// SetHandlers replaces all handlers
func (c *Client) SetHandlers(h Handlers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = h
}

// SetStateHandler sets the connection state handler
func (c *Client) SetStateHandler(fn func(ConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers.OnState = fn
}

// SetEventHandler sets the inbound event handler
func (c *Client) SetEventHandler(fn func(protocol.Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers.OnEvent = fn
}

// SetDropHandler sets the handler for frames that failed to decode
func (c *Client) SetDropHandler(fn func(raw []byte, err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers.OnDrop = fn
}

// State returns the current connection state
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RetryCount returns the number of retries scheduled since the last successful open
func (c *Client) RetryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retryCount
}

// URL returns the endpoint the client dials
func (c *Client) URL() string {
	return c.config.URL
}

// Connect starts connecting without blocking. It is a no-op while a dial is
// in flight or the connection is open. A pending retry is cancelled and
// replaced by an immediate attempt. After the retry budget was spent, Connect
// starts a new cycle with the retry counter reset.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.dialing || c.state == StateConnected {
		c.log.Debug("connect ignored, state is %s", c.state)
		c.mu.Unlock()
		return
	}
	if c.exhausted {
		c.retryCount = 0
		c.exhausted = false
		c.policy.Reset()
	}
	c.startLocked()
	c.mu.Unlock()

	c.flush()
}

// Disconnect shuts the connection down intentionally. No retry is scheduled
// afterwards. Safe to call multiple times and from any state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.intentional = true
	c.generation++
	c.stopTimerLocked()
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	c.dialing = false
	conn := c.conn
	c.conn = nil
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			c.log.Debug("close: %v", err)
		}
	}
	c.flush()
}

// Send writes v as a single JSON frame. It returns false without queueing
// anything unless the connection is open.
func (c *Client) Send(v any) bool {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()

	if state != StateConnected || conn == nil {
		c.log.Debug("send dropped, state is %s", state)
		return false
	}

	data, err := protocol.Encode(v)
	if err != nil {
		c.log.Warn("send: %v", err)
		return false
	}

	if err := conn.WriteMessage(data); err != nil {
		// the read loop observes the broken connection and drives the state change
		c.log.Warn("send failed: %v", err)
		return false
	}
	return true
}

// startLocked begins a dial for a new generation
func (c *Client) startLocked() {
	c.stopTimerLocked()
	c.intentional = false
	c.generation++
	gen := c.generation

	if c.retryCount > 0 {
		c.setStateLocked(StateReconnecting)
	} else {
		c.setStateLocked(StateConnecting)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.config.ConnectTimeout)
	c.dialing = true
	c.cancelDial = cancel

	go c.dial(ctx, cancel, gen)
}

func (c *Client) dial(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	defer cancel()

	c.log.Debug("dialing %s (generation %d)", c.config.URL, gen)
	conn, err := c.dialer.Dial(ctx, c.config.URL)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		c.log.Debug("discarding stale dial (generation %d)", gen)
		return
	}
	c.dialing = false
	c.cancelDial = nil

	if err != nil {
		c.log.Debug("dial failed: %v", err)
		c.lostLocked()
		c.mu.Unlock()
		c.flush()
		return
	}

	c.conn = conn
	c.retryCount = 0
	c.exhausted = false
	c.policy.Reset()
	c.setStateLocked(StateConnected)
	c.mu.Unlock()

	c.log.Info("connected to %s", c.config.URL)
	c.flush()

	c.readLoop(conn, gen)
}

func (c *Client) readLoop(conn Conn, gen uint64) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if gen != c.generation || c.conn != conn {
				c.mu.Unlock()
				return
			}
			c.conn = nil
			c.log.Info("connection lost: %v", err)
			c.lostLocked()
			c.mu.Unlock()

			conn.Close()
			c.flush()
			return
		}

		ev, decodeErr := protocol.Decode(data)

		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return
		}
		if decodeErr != nil {
			c.log.Debug("dropping payload: %v", decodeErr)
			raw := data
			c.notifyLocked(func(h Handlers) {
				if c.observer != nil {
					c.observer.PayloadDropped()
				}
				if h.OnDrop != nil {
					h.OnDrop(raw, decodeErr)
				}
			})
		} else {
			c.notifyLocked(func(h Handlers) {
				if c.observer != nil {
					c.observer.EventReceived(ev.Type())
				}
				if h.OnEvent != nil {
					h.OnEvent(ev)
				}
			})
		}
		c.mu.Unlock()
		c.flush()
	}
}

// lostLocked handles an unexpected close or a failed dial
func (c *Client) lostLocked() {
	c.setStateLocked(StateDisconnected)
	if c.intentional {
		return
	}

	delay := c.policy.NextBackOff()
	if delay == backoff.Stop {
		c.exhausted = true
		c.log.Warn("giving up after %d retries", c.retryCount)
		return
	}

	c.retryCount++
	attempt := c.retryCount
	gen := c.generation
	c.setStateLocked(StateReconnecting)
	c.retryTimer = c.scheduler.AfterFunc(delay, func() { c.retry(gen) })

	c.log.Info("retry %d/%d in %s", attempt, c.config.MaxRetries, delay)
	if c.observer != nil {
		c.notifyLocked(func(Handlers) { c.observer.RetryScheduled(attempt, delay) })
	}
}

func (c *Client) retry(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.intentional || c.retryTimer == nil {
		c.mu.Unlock()
		return
	}
	c.retryTimer = nil
	c.startLocked()
	c.mu.Unlock()

	c.flush()
}

func (c *Client) stopTimerLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

// setStateLocked sets the connection state and queues the notification
func (c *Client) setStateLocked(state ConnectionState) {
	if c.state == state {
		return
	}
	c.log.Debug("state %s -> %s", c.state, state)
	c.state = state

	c.notifyLocked(func(h Handlers) {
		if c.observer != nil {
			c.observer.StateChanged(state)
		}
		if h.OnState != nil {
			h.OnState(state)
		}
	})
}

func (c *Client) notifyLocked(fn func(Handlers)) {
	c.queue = append(c.queue, fn)
}

// flush delivers queued notifications in order. Only one goroutine drains at
// a time; a concurrent or reentrant caller leaves its notifications to the
// active drainer.
func (c *Client) flush() {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	for len(c.queue) > 0 {
		batch := c.queue
		c.queue = nil
		h := c.handlers
		c.mu.Unlock()

		for _, fn := range batch {
			fn(h)
		}

		c.mu.Lock()
	}
	c.draining = false
	c.mu.Unlock()
}
