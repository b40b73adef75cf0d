package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlogAdapterFormatsAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(LevelDebug, &buf, "web")

	Slog(l).WithGroup("conn").Info("client connected", "id", "abc", slog.Group("remote", "port", 8000))

	out := buf.String()
	assert.Contains(t, out, "[INFO] [web] client connected")
	assert.Contains(t, out, "conn.id=abc")
	assert.Contains(t, out, "conn.remote.port=8000")
}

func TestSlogAdapterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(LevelWarn, &buf, "")
	s := Slog(l)

	s.Info("quiet")
	s.Warn("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "[WARN] loud")
	assert.False(t, s.Enabled(context.Background(), slog.LevelDebug))
}

func TestStdLoggerWritesAtLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(LevelDebug, &buf, "http")

	StdLogger(l, slog.LevelError).Printf("http: TLS handshake error from %s", "127.0.0.1")

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, "[ERROR] [http] http: TLS handshake error from 127.0.0.1")
}
