// Package cli runs one question headlessly: connect, ask, stream the answer
// to stdout and exit.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/codefionn/pulseterm/internal/consts"
	"github.com/codefionn/pulseterm/internal/logger"
	"github.com/codefionn/pulseterm/internal/progress"
	"github.com/codefionn/pulseterm/internal/session"
	"github.com/codefionn/pulseterm/internal/socketclient"
	"golang.org/x/term"
)

var (
	// ErrNotConnected is returned when the connection does not open in time
	ErrNotConnected = errors.New("could not connect to the query service")
	// ErrRejected is returned when the session refuses the question
	ErrRejected = errors.New("question was not accepted")
	// ErrAnswerFailed wraps the error notice of a failed answer
	ErrAnswerFailed = errors.New("answer failed")
	// ErrTimeout is returned when the answer does not complete in time
	ErrTimeout = errors.New("timed out waiting for the answer")
)

// Connector is the part of the connection manager the CLI drives.
// *socketclient.Client satisfies it.
type Connector interface {
	Connect()
	Disconnect()
}

// Options configure a headless run
type Options struct {
	// ConnectTimeout bounds waiting for the first open connection
	ConnectTimeout time.Duration
	// AnswerTimeout bounds waiting for done or error after submitting
	AnswerTimeout time.Duration
	// Stdout receives the answer, Stderr status lines. Nil means os.Stdout/os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
}

// CLI handles the headless ask mode
type CLI struct {
	conn    Connector
	session *session.Session
	options Options
	log     *logger.Logger

	// incremental prints tokens as they arrive; otherwise the answer is
	// printed once complete
	incremental bool
}

// New creates a CLI runner. opts may be nil.
func New(conn Connector, sess *session.Session, opts *Options) *CLI {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = consts.Timeout10Seconds
	}
	if o.AnswerTimeout <= 0 {
		o.AnswerTimeout = consts.Timeout2Minutes
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}

	return &CLI{
		conn:        conn,
		session:     sess,
		options:     o,
		log:         logger.Global().WithPrefix("cli"),
		incremental: isTerminal(o.Stdout),
	}
}

// SetIncremental forces token-by-token output on or off
func (c *CLI) SetIncremental(enabled bool) {
	c.incremental = enabled
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// outcome is the terminal result of one answer
type outcome struct {
	err error
}

// watcher follows session changes for one question
type watcher struct {
	mu        sync.Mutex
	answerID  string
	submitted bool
	answer    strings.Builder

	connected chan struct{}
	connOnce  sync.Once
	finished  chan outcome
	finOnce   sync.Once
}

func (w *watcher) finish(err error) {
	w.finOnce.Do(func() { w.finished <- outcome{err: err} })
}

// Run asks question and blocks until the answer completes, fails or times out
func (c *CLI) Run(ctx context.Context, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return fmt.Errorf("%w: question is empty", ErrRejected)
	}

	w := &watcher{
		connected: make(chan struct{}),
		finished:  make(chan outcome, 1),
	}
	out := c.progressCallback()

	cancel := c.session.Subscribe(func(ch session.Change) {
		c.observe(w, ch, out)
	})
	defer cancel()
	defer c.conn.Disconnect()

	c.log.Info("connecting")
	c.conn.Connect()
	if c.session.CanSubmit() {
		w.connOnce.Do(func() { close(w.connected) })
	}

	connectCtx, connectCancel := context.WithTimeout(ctx, c.options.ConnectTimeout)
	defer connectCancel()
	select {
	case <-w.connected:
	case <-connectCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w within %s", ErrNotConnected, c.options.ConnectTimeout)
	}

	w.mu.Lock()
	w.submitted = true
	w.mu.Unlock()
	if !c.session.Submit(question) {
		return ErrRejected
	}
	c.log.Info("question submitted")

	answerCtx, answerCancel := context.WithTimeout(ctx, c.options.AnswerTimeout)
	defer answerCancel()
	select {
	case res := <-w.finished:
		return res.err
	case <-answerCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w after %s", ErrTimeout, c.options.AnswerTimeout)
	}
}

func (c *CLI) observe(w *watcher, ch session.Change, out progress.Callback) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch ch.Kind {
	case session.ChangeState:
		if ch.State == socketclient.StateConnected && !ch.Busy {
			w.connOnce.Do(func() { close(w.connected) })
		}
		if ch.State == socketclient.StateDisconnected && w.answerID != "" {
			c.log.Warn("connection lost while streaming")
			w.finish(fmt.Errorf("%w: %s", ErrAnswerFailed, "connection lost"))
		}

	case session.ChangeAppend:
		if !w.submitted || w.answerID != "" {
			return
		}
		if ch.Entry.Role == session.RoleAssistant && ch.Entry.Streaming {
			w.answerID = ch.Entry.ID
		}

	case session.ChangeUpdate:
		if ch.Entry.ID != w.answerID {
			return
		}
		if ch.Delta != "" {
			w.answer.WriteString(ch.Delta)
			if c.incremental {
				c.dispatch(out, progress.Stream(ch.Delta))
			}
		}
		if ch.Entry.Streaming {
			return
		}

		if ch.Entry.SourcesScanned == nil {
			// error replaced the partial answer
			if c.incremental && w.answer.Len() > 0 {
				c.dispatch(out, progress.Stream("\n"))
			}
			w.finish(fmt.Errorf("%w: %s", ErrAnswerFailed, strings.TrimPrefix(ch.Entry.Content, session.FormatError(""))))
			return
		}

		if !c.incremental {
			c.dispatch(out, progress.Stream(w.answer.String()))
		}
		c.dispatch(out, progress.Stream("\n"))
		c.dispatch(out, progress.Status(fmt.Sprintf("[%d sources]", *ch.Entry.SourcesScanned)))
		w.finish(nil)
	}
}

func (c *CLI) dispatch(out progress.Callback, u progress.Update) {
	if err := progress.Dispatch(out, u); err != nil {
		c.log.Warn("write failed: %v", err)
	}
}

// progressCallback prints streaming text to stdout and status to stderr
func (c *CLI) progressCallback() progress.Callback {
	return func(update progress.Update) error {
		if update.ShouldStatus() {
			if update.Message == "" {
				return nil
			}
			_, err := fmt.Fprint(c.options.Stderr, update.Message)
			return err
		}
		if update.Message == "" || !update.ShouldStream() {
			return nil
		}
		_, err := fmt.Fprint(c.options.Stdout, update.Message)
		return err
	}
}
