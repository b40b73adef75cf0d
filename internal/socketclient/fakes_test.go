package socketclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codefionn/pulseterm/internal/protocol"
)

var errRefused = errors.New("connection refused")

type fakeConn struct {
	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	written [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

// fakeDialer hands out whatever next returns; a nil next refuses every dial
type fakeDialer struct {
	calls atomic.Int32

	mu   sync.Mutex
	next func(ctx context.Context) (Conn, error)
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.calls.Add(1)
	d.mu.Lock()
	next := d.next
	d.mu.Unlock()
	if next == nil {
		return nil, errRefused
	}
	return next(ctx)
}

func (d *fakeDialer) set(next func(ctx context.Context) (Conn, error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next = next
}

func (d *fakeDialer) Calls() int {
	return int(d.calls.Load())
}

// connQueue returns a dial func handing out the given conns in order
func connQueue(conns ...*fakeConn) func(context.Context) (Conn, error) {
	var mu sync.Mutex
	return func(context.Context) (Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(conns) == 0 {
			return nil, errRefused
		}
		c := conns[0]
		conns = conns[1:]
		return c, nil
	}
}

type fakeTimer struct {
	delay time.Duration
	f     func()

	mu      sync.Mutex
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (t *fakeTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// fakeScheduler records timers; tests fire them by hand
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{delay: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *fakeScheduler) last() *fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return nil
	}
	return s.timers[len(s.timers)-1]
}

func (s *fakeScheduler) delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.timers))
	for i, t := range s.timers {
		out[i] = t.delay
	}
	return out
}

// fireLast runs the newest timer unless it was stopped
func (s *fakeScheduler) fireLast() bool {
	t := s.last()
	if t == nil {
		return false
	}
	t.mu.Lock()
	if t.stopped || t.fired {
		t.mu.Unlock()
		return false
	}
	t.fired = true
	t.mu.Unlock()
	t.f()
	return true
}

// fireAnyway runs the newest timer even if Stop lost the race
func (s *fakeScheduler) fireAnyway() {
	if t := s.last(); t != nil {
		t.f()
	}
}

type recorder struct {
	mu     sync.Mutex
	states []ConnectionState
	events []protocol.Event
	drops  [][]byte
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnState: func(s ConnectionState) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, s)
		},
		OnEvent: func(ev protocol.Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, ev)
		},
		OnDrop: func(raw []byte, err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.drops = append(r.drops, raw)
		},
	}
}

func (r *recorder) stateLog() []ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ConnectionState(nil), r.states...)
}

func (r *recorder) eventLog() []protocol.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Event(nil), r.events...)
}

func (r *recorder) dropCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.drops)
}

type countingObserver struct {
	states  atomic.Int32
	retries atomic.Int32
	dropped atomic.Int32
	events  atomic.Int32
}

func (o *countingObserver) StateChanged(ConnectionState) { o.states.Add(1) }
func (o *countingObserver) RetryScheduled(int, time.Duration) { o.retries.Add(1) }
func (o *countingObserver) PayloadDropped() { o.dropped.Add(1) }
func (o *countingObserver) EventReceived(string) { o.events.Add(1) }
