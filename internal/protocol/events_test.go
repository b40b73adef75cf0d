package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvents(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  Event
	}{
		{"token", `{"type":"token","content":"Sent"}`, Token{Content: "Sent"}},
		{"empty token", `{"type":"token","content":""}`, Token{}},
		{"done", `{"type":"done","sources_scanned":5}`, Done{SourcesScanned: 5}},
		{"error", `{"type":"error","detail":"upstream timeout"}`, Error{Detail: "upstream timeout"}},
		{"extra fields ignored", `{"type":"token","content":"x","seq":3}`, Token{Content: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	frames := map[string]string{
		"not json":             `{"type":`,
		"array":                `["token"]`,
		"null":                 `null`,
		"missing type":         `{"content":"x"}`,
		"type not string":      `{"type":1}`,
		"missing content":      `{"type":"token"}`,
		"content not string":   `{"type":"token","content":42}`,
		"null content":         `{"type":"token","content":null}`,
		"missing sources":      `{"type":"done"}`,
		"sources as string":    `{"type":"done","sources_scanned":"5"}`,
		"sources fractional":   `{"type":"done","sources_scanned":2.5}`,
		"detail not string":    `{"type":"error","detail":{"msg":"x"}}`,
		"unknown discriminant": `{"type":"ping"}`,
	}

	for name, frame := range frames {
		t.Run(name, func(t *testing.T) {
			ev, err := Decode([]byte(frame))
			assert.Nil(t, ev)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"status","content":"x"}`))
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEventsEncodeToWireShape(t *testing.T) {
	data, err := Encode(Token{Content: "hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"token","content":"hi"}`, string(data))

	data, err = Encode(Done{SourcesScanned: 12})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"done","sources_scanned":12}`, string(data))

	data, err = Encode(Error{Detail: "boom"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","detail":"boom"}`, string(data))

	// Frames written by the service decode back to the same events.
	ev, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, Error{Detail: "boom"}, ev)
}

func TestEncodeQuestion(t *testing.T) {
	data, err := Encode(NewQuestion("What is Bitcoin sentiment?"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"question":"What is Bitcoin sentiment?"}`, string(data))
}

func TestEncodeUnsupportedValue(t *testing.T) {
	_, err := Encode(make(chan int))
	assert.Error(t, err)
}
