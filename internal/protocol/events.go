// Package protocol defines the wire contract spoken with the query service:
// the outbound question payload and the three inbound stream events.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Event types carried in the "type" discriminator
const (
	TypeToken = "token"
	TypeDone  = "done"
	TypeError = "error"
)

var (
	// ErrMalformed is returned for frames that do not match any known event shape
	ErrMalformed = errors.New("malformed event")
	// ErrUnknownType is returned for frames whose type discriminator is not recognized
	ErrUnknownType = fmt.Errorf("%w: unknown type", ErrMalformed)
)

// Event is one inbound frame: Token, Done or Error
type Event interface {
	Type() string
}

// Token is one increment of a streamed answer
type Token struct {
	Content string
}

// Done marks the current answer complete
type Done struct {
	SourcesScanned int
}

// Error marks the current answer (or the exchange) as failed
type Error struct {
	Detail string
}

func (Token) Type() string { return TypeToken }
func (Done) Type() string  { return TypeDone }
func (Error) Type() string { return TypeError }

func (t Token) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}{TypeToken, t.Content})
}

func (d Done) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type           string `json:"type"`
		SourcesScanned int    `json:"sources_scanned"`
	}{TypeDone, d.SourcesScanned})
}

func (e Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string `json:"type"`
		Detail string `json:"detail"`
	}{TypeError, e.Detail})
}

// Question is the only outbound payload
type Question struct {
	Question string `json:"question"`
}

// NewQuestion wraps text in the outbound payload
func NewQuestion(text string) Question {
	return Question{Question: text}
}

// Encode serializes an outbound payload into a text frame
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return data, nil
}

// Decode parses one text frame into an Event. Unknown fields are ignored;
// a missing or mistyped required field is an error wrapping ErrMalformed.
func Decode(data []byte) (Event, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformed)
	}

	var kind string
	if err := field(fields, "type", &kind); err != nil {
		return nil, err
	}

	switch kind {
	case TypeToken:
		var t Token
		if err := field(fields, "content", &t.Content); err != nil {
			return nil, err
		}
		return t, nil
	case TypeDone:
		var v any
		if err := field(fields, "sources_scanned", &v); err != nil {
			return nil, err
		}
		n, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("%w: sources_scanned is not a number", ErrMalformed)
		}
		count, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: sources_scanned %q is not an integer", ErrMalformed, n)
		}
		return Done{SourcesScanned: int(count)}, nil
	case TypeError:
		var e Error
		if err := field(fields, "detail", &e.Detail); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownType, kind)
	}
}

func field(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return fmt.Errorf("%w: missing %q", ErrMalformed, name)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: field %q: %v", ErrMalformed, name, err)
	}
	return nil
}
