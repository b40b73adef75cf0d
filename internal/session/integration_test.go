package session_test

import (
	"testing"
	"time"

	"github.com/codefionn/pulseterm/internal/features"
	"github.com/codefionn/pulseterm/internal/session"
	"github.com/codefionn/pulseterm/internal/socketclient"
	"github.com/codefionn/pulseterm/internal/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attachedSession(t *testing.T, responder web.Responder, flags *features.FeatureFlags) (*web.Server, *socketclient.Client, *session.Session) {
	t.Helper()

	srv := web.NewServer("127.0.0.1:0", responder)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop() })

	cfg := socketclient.DefaultConfig()
	cfg.URL = srv.URL()
	cfg.BaseDelay = 20 * time.Millisecond
	cfg.MaxDelay = 100 * time.Millisecond

	client, err := socketclient.New(cfg)
	require.NoError(t, err)
	t.Cleanup(client.Disconnect)

	sess := session.New(client, session.WithFeatures(flags))
	sess.Attach(client)
	client.Connect()

	require.Eventually(t, sess.CanSubmit, 5*time.Second, 10*time.Millisecond)
	return srv, client, sess
}

func TestExchangeEndToEnd(t *testing.T) {
	_, _, sess := attachedSession(t, &web.EchoResponder{Answer: "Bitcoin sentiment is bullish.", Sources: 12}, nil)

	require.True(t, sess.Submit("  What is Bitcoin sentiment?  "))
	assert.False(t, sess.Submit("second question while busy"))

	require.Eventually(t, func() bool { return !sess.Busy() }, 5*time.Second, 10*time.Millisecond)

	entries := sess.Snapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, session.RoleUser, entries[0].Role)
	assert.Equal(t, "What is Bitcoin sentiment?", entries[0].Content)
	assert.Equal(t, "Bitcoin sentiment is bullish.", entries[1].Content)
	assert.False(t, entries[1].Streaming)
	require.NotNil(t, entries[1].SourcesScanned)
	assert.Equal(t, 12, *entries[1].SourcesScanned)
}

func TestServerRefusalBecomesErrorEntry(t *testing.T) {
	_, _, sess := attachedSession(t, &web.ScriptedResponder{Frames: [][]byte{
		[]byte(`{"type":"error","detail":"rate limited"}`),
	}}, nil)

	require.True(t, sess.Submit("anything"))
	require.Eventually(t, func() bool { return !sess.Busy() }, 5*time.Second, 10*time.Millisecond)

	entries := sess.Snapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, "Error: rate limited", entries[1].Content)
	assert.False(t, entries[1].Streaming)
}

func TestDroppedConnectionFailsStreamWhenEnabled(t *testing.T) {
	flags := features.NewFeatureFlags()
	flags.SetFailStreamOnDisconnect(true)

	// a long delay keeps the answer open while the connection is dropped
	srv, client, sess := attachedSession(t, &web.EchoResponder{Answer: "never finishes", TokenDelay: time.Minute}, flags)

	require.True(t, sess.Submit("q"))
	require.Eventually(t, func() bool { return srv.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	srv.DropConnections()

	require.Eventually(t, func() bool { return !sess.Busy() }, 5*time.Second, 10*time.Millisecond)
	entries := sess.Snapshot()
	assert.Equal(t, "Error: connection lost", entries[1].Content)

	// the client recovers and the session accepts questions again
	require.Eventually(t, sess.CanSubmit, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, socketclient.StateConnected, client.State())
}
