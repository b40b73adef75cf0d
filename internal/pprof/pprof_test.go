package pprof

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutesServeGoroutineProfile(t *testing.T) {
	rec := httptest.NewRecorder()
	Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/goroutine?debug=1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goroutine profile")
}

func TestHandlerServesAndStops(t *testing.T) {
	h := NewHandler(Config{HTTPAddr: "127.0.0.1:0"})
	require.NoError(t, h.Start())

	resp, err := http.Get("http://" + h.Addr() + "/debug/pprof/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, h.Stop())
	assert.Empty(t, h.Addr())
	assert.NoError(t, h.Stop(), "second stop is a no-op")
}

func TestCPUProfileWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prof", "cpu.out")
	h := NewHandler(Config{CPUProfile: path})
	require.NoError(t, h.Start())
	require.NoError(t, h.Stop())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
