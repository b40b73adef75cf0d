// Package session turns the connection's event stream into a conversation.
//
// A Session owns the transcript and folds Token, Done and Error events into
// the answer currently being streamed. At most one exchange is in flight: a
// submission is accepted only while connected and idle.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/codefionn/pulseterm/internal/features"
	"github.com/codefionn/pulseterm/internal/logger"
	"github.com/codefionn/pulseterm/internal/protocol"
	"github.com/codefionn/pulseterm/internal/socketclient"
)

// connectionLost is the notice used when a stream is failed on disconnect
const connectionLost = "connection lost"

// Sender is the part of the connection manager a session needs.
// *socketclient.Client satisfies it.
type Sender interface {
	Send(v any) bool
	State() socketclient.ConnectionState
}

// Recorder receives counters for instrumentation. metrics.Collector satisfies it.
type Recorder interface {
	SubmissionRecorded(accepted bool)
	EventFolded(kind string, applied bool)
}

// ChangeKind says what a Change describes
type ChangeKind int

const (
	// ChangeState reports a new connection state
	ChangeState ChangeKind = iota
	// ChangeAppend reports a new entry
	ChangeAppend
	// ChangeUpdate reports a mutation of the in-flight entry
	ChangeUpdate
)

// Change is delivered to subscribers after every mutation
type Change struct {
	Kind  ChangeKind
	State socketclient.ConnectionState
	// Entry is a copy of the appended or updated entry
	Entry Entry
	// Delta is the text a token appended, empty otherwise
	Delta string
	Busy  bool
}

// FormatError renders the notice shown in place of a failed answer
func FormatError(detail string) string {
	return "Error: " + detail
}

// Option configures a Session
type Option func(*Session)

// WithFeatures sets the feature flags consulted on disconnect
func WithFeatures(f *features.FeatureFlags) Option {
	return func(s *Session) { s.features = f }
}

// WithRecorder attaches an instrumentation recorder
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithClock replaces time.Now for entry timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.transcript.now = now }
}

// WithLogger replaces the session's logger
func WithLogger(l *logger.Logger) Option {
	return func(s *Session) { s.log = l }
}

type subscriber struct {
	id int
	fn func(Change)
}

// Session manages a conversation over one connection
type Session struct {
	sender   Sender
	features *features.FeatureFlags
	recorder Recorder
	log      *logger.Logger

	mu         sync.Mutex
	transcript *transcript
	inFlight   int // index of the streaming assistant entry, -1 when idle
	state      socketclient.ConnectionState

	subMu       sync.Mutex
	subscribers []subscriber
	nextSubID   int

	// pending changes, drained by one goroutine at a time
	queue    []Change
	draining bool
}

// New creates a session sending through sender
func New(sender Sender, opts ...Option) *Session {
	s := &Session{
		sender:     sender,
		transcript: newTranscript(time.Now),
		inFlight:   -1,
		state:      sender.State(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Global().WithPrefix("session")
	}
	return s
}

// Attach registers the session as the client's state and event handler
func (s *Session) Attach(c *socketclient.Client) {
	c.SetStateHandler(s.HandleState)
	c.SetEventHandler(s.HandleEvent)
}

// Submit sends text as a new question. It returns false and changes nothing
// when text is blank, the connection is not open, or an answer is still
// streaming.
func (s *Session) Submit(text string) bool {
	question := strings.TrimSpace(text)

	s.mu.Lock()
	state := s.sender.State()
	if question == "" || state != socketclient.StateConnected || s.inFlight >= 0 {
		s.log.Debug("submission rejected (state %s, busy %v, empty %v)", state, s.inFlight >= 0, question == "")
		s.mu.Unlock()
		s.record(func(r Recorder) { r.SubmissionRecorded(false) })
		return false
	}

	user := s.transcript.append(RoleUser, question, false)
	s.inFlight = s.transcript.append(RoleAssistant, "", true)
	s.enqueueLocked(Change{Kind: ChangeAppend, Entry: s.transcript.at(user).clone()})
	s.enqueueLocked(Change{Kind: ChangeAppend, Entry: s.transcript.at(s.inFlight).clone()})
	s.mu.Unlock()

	s.record(func(r Recorder) { r.SubmissionRecorded(true) })
	if !s.sender.Send(protocol.NewQuestion(question)) {
		s.log.Warn("question was not sent; the connection closed before the write")
	}
	s.flush()
	return true
}

// HandleEvent folds one inbound event into the transcript
func (s *Session) HandleEvent(ev protocol.Event) {
	s.mu.Lock()
	var applied bool
	switch e := ev.(type) {
	case protocol.Token:
		applied = s.foldTokenLocked(e)
	case protocol.Done:
		applied = s.foldDoneLocked(e)
	case protocol.Error:
		s.foldErrorLocked(e)
		applied = true
	default:
		s.log.Debug("ignoring event %T", ev)
	}
	s.mu.Unlock()

	if ev != nil {
		s.record(func(r Recorder) { r.EventFolded(ev.Type(), applied) })
	}
	s.flush()
}

func (s *Session) foldTokenLocked(t protocol.Token) bool {
	if s.inFlight < 0 {
		s.log.Debug("dropping token with no open answer")
		return false
	}
	entry := s.transcript.at(s.inFlight)
	entry.Content += t.Content
	s.enqueueLocked(Change{Kind: ChangeUpdate, Entry: entry.clone(), Delta: t.Content})
	return true
}

func (s *Session) foldDoneLocked(d protocol.Done) bool {
	if s.inFlight < 0 {
		s.log.Debug("dropping done with no open answer")
		return false
	}
	entry := s.transcript.at(s.inFlight)
	entry.Streaming = false
	sources := d.SourcesScanned
	entry.SourcesScanned = &sources
	s.inFlight = -1
	s.enqueueLocked(Change{Kind: ChangeUpdate, Entry: entry.clone()})
	return true
}

func (s *Session) foldErrorLocked(e protocol.Error) {
	notice := FormatError(e.Detail)
	if s.inFlight < 0 {
		i := s.transcript.append(RoleAssistant, notice, false)
		s.enqueueLocked(Change{Kind: ChangeAppend, Entry: s.transcript.at(i).clone()})
		return
	}
	entry := s.transcript.at(s.inFlight)
	entry.Content = notice
	entry.Streaming = false
	s.inFlight = -1
	s.enqueueLocked(Change{Kind: ChangeUpdate, Entry: entry.clone()})
}

// HandleState records a connection state change. When the
// fail-stream-on-disconnect flag is set, losing the connection turns an open
// answer into a terminal error entry.
func (s *Session) HandleState(state socketclient.ConnectionState) {
	s.mu.Lock()
	s.state = state
	s.enqueueLocked(Change{Kind: ChangeState})

	if state == socketclient.StateDisconnected && s.inFlight >= 0 && s.features.FailsStreamOnDisconnect() {
		entry := s.transcript.at(s.inFlight)
		if entry.Content == "" {
			entry.Content = FormatError(connectionLost)
		} else {
			entry.Content += "\n\n" + FormatError(connectionLost)
		}
		entry.Streaming = false
		s.inFlight = -1
		s.log.Info("answer abandoned by disconnect")
		s.enqueueLocked(Change{Kind: ChangeUpdate, Entry: entry.clone()})
	}
	s.mu.Unlock()

	s.flush()
}

// Snapshot returns a copy of the transcript
func (s *Session) Snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.snapshot()
}

// Busy reports whether an answer is streaming
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight >= 0
}

// State returns the last connection state the session saw
func (s *Session) State() socketclient.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CanSubmit reports whether Submit would accept non-blank text right now
func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight < 0 && s.sender.State() == socketclient.StateConnected
}

// Subscribe registers fn for every change. Changes are delivered in order,
// one at a time, without the session lock held. The returned func
// unsubscribes.
func (s *Session) Subscribe(fn func(Change)) (cancel func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (s *Session) record(fn func(Recorder)) {
	if s.recorder != nil {
		fn(s.recorder)
	}
}

// enqueueLocked stamps c with the current state and queues it
func (s *Session) enqueueLocked(c Change) {
	c.State = s.state
	c.Busy = s.inFlight >= 0
	s.queue = append(s.queue, c)
}

func (s *Session) flush() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for len(s.queue) > 0 {
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		s.subMu.Lock()
		subs := append([]subscriber(nil), s.subscribers...)
		s.subMu.Unlock()

		for _, c := range batch {
			for _, sub := range subs {
				sub.fn(c)
			}
		}

		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}
