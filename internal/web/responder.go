package web

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codefionn/pulseterm/internal/protocol"
)

// Stream carries the frames of one answer back to the asking connection
type Stream interface {
	Send(ev protocol.Event) error
	SendRaw(frame []byte) error
}

// Responder answers one question. It streams zero or more tokens followed
// by exactly one done or error event. A returned error is reported to the
// peer as an error event.
type Responder interface {
	Respond(ctx context.Context, question string, out Stream) error
}

// ResponderFunc adapts a function to Responder
type ResponderFunc func(ctx context.Context, question string, out Stream) error

func (f ResponderFunc) Respond(ctx context.Context, question string, out Stream) error {
	return f(ctx, question, out)
}

// EchoResponder streams a canned answer word by word
type EchoResponder struct {
	// Answer is streamed for every question; empty echoes the question
	Answer string
	// TokenDelay is waited before each token
	TokenDelay time.Duration
	// Sources is reported as sources_scanned
	Sources int
}

func (e *EchoResponder) Respond(ctx context.Context, question string, out Stream) error {
	answer := e.Answer
	if answer == "" {
		answer = fmt.Sprintf("You asked: **%s**\n\nThis answer comes from the local stand-in service; no market data was consulted.", question)
	}

	for _, tok := range strings.SplitAfter(answer, " ") {
		if tok == "" {
			continue
		}
		if e.TokenDelay > 0 {
			select {
			case <-time.After(e.TokenDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := out.Send(protocol.Token{Content: tok}); err != nil {
			return err
		}
	}

	return out.Send(protocol.Done{SourcesScanned: e.Sources})
}

// ScriptedResponder replays fixed frames verbatim, malformed ones included
type ScriptedResponder struct {
	Frames [][]byte
	Delay  time.Duration
}

func (s *ScriptedResponder) Respond(ctx context.Context, question string, out Stream) error {
	for _, frame := range s.Frames {
		if s.Delay > 0 {
			select {
			case <-time.After(s.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := out.SendRaw(frame); err != nil {
			return err
		}
	}
	return nil
}
