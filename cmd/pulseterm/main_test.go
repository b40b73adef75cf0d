package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		ask      bool
		question string
		wantErr  bool
	}{
		{name: "interactive", args: nil},
		{name: "ask command", args: []string{"ask", "How", "is", "gold?"}, ask: true, question: "How is gold?"},
		{name: "p flag", args: []string{"-p", "BTC?"}, ask: true, question: "BTC?"},
		{name: "empty ask", args: []string{"ask", "  "}, wantErr: true},
		{name: "both forms", args: []string{"-p", "a", "ask", "b"}, wantErr: true},
		{name: "unknown command", args: []string{"chat"}, wantErr: true},
		{name: "mock with question", args: []string{"-serve-mock", "-p", "q"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseArgs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ask, opts.ask)
			assert.Equal(t, tt.question, opts.question)
		})
	}
}

func TestParseArgsHelp(t *testing.T) {
	_, err := parseArgs([]string{"-h"})
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestLoadConfigAppliesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"host":"filehost","port":9000}`), 0644))
	t.Setenv("PULSETERM_PORT", "9100")

	cfg, err := loadConfig(&options{configPath: path, host: "flaghost", logLevel: "debug"})
	require.NoError(t, err)
	assert.Equal(t, "flaghost", cfg.Host)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "ws://flaghost:9100/ws", cfg.Endpoint())
}

func TestLoadConfigRejectsInvalidPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	_, err := loadConfig(&options{configPath: path, port: 70000})
	assert.Error(t, err)
}
