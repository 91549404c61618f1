package cmd

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/focus/internal/daemon"
)

func TestPidFile_Path(t *testing.T) {
	dir := testEnv(t)

	pf := pidFile()
	expected := filepath.Join(dir, "focus-serve.pid")
	assert.Equal(t, expected, pf.Path)
}

func TestServeLogPath(t *testing.T) {
	dir := testEnv(t)

	assert.Equal(t, filepath.Join(dir, "focus-serve.log"), serveLogPath())
	assert.Equal(t, filepath.Join(dir, "focus-run.log"), runLogPath())
}

func TestServeStatusRun_NotRunning(t *testing.T) {
	testEnv(t)

	// No PID file exists, so status should show "not running" without error.
	err := serveStatusRun()
	assert.NoError(t, err)
}

func TestServeStopRun_NotRunning(t *testing.T) {
	testEnv(t)

	// No PID file exists, so stop should return an error.
	err := serveStopRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}

func TestServeStartRun_AlreadyRunning(t *testing.T) {
	dir := testEnv(t)

	// Write a PID file for the current process (which is alive).
	pf := daemon.NewPIDFile(filepath.Join(dir, "focus-serve.pid"))
	require.NoError(t, pf.WritePID(os.Getpid()))
	t.Cleanup(func() { _ = os.Remove(pf.Path) })

	err := serveStartRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestServeStartRun_DryRun(t *testing.T) {
	dir := testEnv(t)
	dryRun = true
	defer func() { dryRun = false }()

	require.NoError(t, serveStartRun())
	_, err := os.Stat(filepath.Join(dir, "focus-serve.pid"))
	assert.True(t, os.IsNotExist(err))
}

func TestServeHandler_Routes(t *testing.T) {
	testEnv(t)
	viper.Set("notify.enabled", false)
	viper.Set("screen.dir", t.TempDir())
	t.Setenv("ANTHROPIC_API_KEY", "")

	a, err := newApp(io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	h, err := serveHandler(a)
	require.NoError(t, err)

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/api/v1/sessions", http.StatusOK, "[]"},
		{"/api/v1/tasks", http.StatusOK, ""},
		{"/metrics", http.StatusOK, "focus_"},
		{"/", http.StatusOK, "<title>focus</title>"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}
