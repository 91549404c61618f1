package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/focus/internal/output"
)

// testEnv sets up isolated config dir, viper, and output for testing.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	// Override configDirFunc for tests
	origFunc := configDirFunc
	configDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { configDirFunc = origFunc })

	// Reset viper and the shared store
	viper.Reset()
	setDefaults(dir)
	if dataStore != nil {
		_ = dataStore.Close()
		dataStore = nil
	}
	t.Cleanup(func() {
		if dataStore != nil {
			_ = dataStore.Close()
			dataStore = nil
		}
	})

	// Initialize output into a buffer
	ui = output.New()
	var buf bytes.Buffer
	ui.Out = &buf
	ui.ErrOut = &buf

	return dir
}

func TestConfigInit_CreatesFile(t *testing.T) {
	dir := testEnv(t)

	err := configInitRun()
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "config.yaml")
	_, err = os.Stat(cfgPath)
	assert.NoError(t, err, "config file should exist")

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "focus configuration")
	assert.Contains(t, string(data), "capture_interval_sec: 30")
	assert.Contains(t, string(data), `provider: "anthropic"`)
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = false
	err := configInitRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigInit_ForceOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = true
	err := configInitRun()
	require.NoError(t, err)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "focus configuration")
}

func TestConfigShow_NoFile(t *testing.T) {
	testEnv(t)

	err := configShowRun()
	assert.NoError(t, err)
}

func TestConfigShow_WithFile(t *testing.T) {
	testEnv(t)

	// Create config first
	require.NoError(t, configInitRun())

	err := configShowRun()
	assert.NoError(t, err)
}

func TestConfigEdit_NoEditor(t *testing.T) {
	testEnv(t)

	// Unset EDITOR and VISUAL
	origEditor := os.Getenv("EDITOR")
	origVisual := os.Getenv("VISUAL")
	_ = os.Unsetenv("EDITOR")
	_ = os.Unsetenv("VISUAL")
	t.Cleanup(func() {
		if origEditor != "" {
			_ = os.Setenv("EDITOR", origEditor)
		}
		if origVisual != "" {
			_ = os.Setenv("VISUAL", origVisual)
		}
	})

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "$EDITOR is not set")
}

func TestConfigEdit_NoConfigFile(t *testing.T) {
	testEnv(t)

	_ = os.Setenv("EDITOR", "echo") // harmless command
	t.Cleanup(func() { _ = os.Unsetenv("EDITOR") })

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDetectSource(t *testing.T) {
	fileValues := map[string]bool{"key_a": true}

	// From env
	os.Setenv("FOCUS_TEST_KEY", "val")
	defer os.Unsetenv("FOCUS_TEST_KEY")
	assert.Contains(t, detectSource("test_key", "FOCUS_TEST_KEY", fileValues), "env")

	// From file
	assert.Contains(t, detectSource("key_a", "FOCUS_KEY_A_NONEXISTENT", fileValues), "file")

	// Default
	assert.Contains(t, detectSource("key_b", "FOCUS_KEY_B_NONEXISTENT", fileValues), "default")
}

func TestFlattenKeys(t *testing.T) {
	input := map[string]any{
		"top": "val",
		"nested": map[string]any{
			"a": "1",
			"b": "2",
		},
	}

	result := make(map[string]bool)
	flattenKeys("", input, result)

	assert.True(t, result["top"])
	assert.True(t, result["nested.a"])
	assert.True(t, result["nested.b"])
	assert.False(t, result["nested"])
}

func TestConfigInit_DryRun(t *testing.T) {
	dir := testEnv(t)
	dryRun = true
	ui.DryRun = true
	defer func() {
		dryRun = false
		ui.DryRun = false
	}()

	err := configInitRun()
	require.NoError(t, err)

	// File should NOT have been created
	cfgPath := filepath.Join(dir, "config.yaml")
	_, err = os.Stat(cfgPath)
	assert.True(t, os.IsNotExist(err), "config file should not exist in dry-run mode")
}

func TestConfigInit_RoundTripsThroughViper(t *testing.T) {
	dir := testEnv(t)
	viper.Set("profile.capture_interval_sec", 45)
	viper.Set("gemini.model", "gemini-custom")
	require.NoError(t, configInitRun())

	viper.Reset()
	viper.SetConfigFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, viper.ReadInConfig())
	assert.Equal(t, 45, viper.GetInt("profile.capture_interval_sec"))
	assert.Equal(t, "gemini-custom", viper.GetString("gemini.model"))
	assert.Equal(t, 8787, viper.GetInt("serve.port"))
	assert.True(t, viper.GetBool("notify.enabled"))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "****", maskSecret("abc"))
	assert.Equal(t, "****wxyz", maskSecret("sk-ant-abcdwxyz"))
}

func TestConfigShow_MasksKeys(t *testing.T) {
	testEnv(t)
	var buf bytes.Buffer
	ui.Out = &buf
	viper.Set("anthropic.api_key", "sk-ant-secret-1234")

	require.NoError(t, configShowRun())
	assert.Contains(t, buf.String(), "****1234")
	assert.NotContains(t, buf.String(), "sk-ant-secret")
}

func TestConfigValidateKey_NoKey(t *testing.T) {
	testEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "")

	err := configValidateKeyRun(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no API key")
}

func TestNewAnalysisClient(t *testing.T) {
	testEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	c, err := newAnalysisClient()
	require.NoError(t, err)
	assert.Nil(t, c)

	viper.Set("anthropic.api_key", "k")
	c, err = newAnalysisClient()
	require.NoError(t, err)
	assert.NotNil(t, c)

	viper.Set("provider", "gemini")
	c, err = newAnalysisClient()
	require.NoError(t, err)
	assert.Nil(t, c)

	t.Setenv("GEMINI_API_KEY", "g")
	c, err = newAnalysisClient()
	require.NoError(t, err)
	assert.NotNil(t, c)

	viper.Set("provider", "openai")
	_, err = newAnalysisClient()
	assert.ErrorContains(t, err, "unknown provider")
}

func TestProfileFromConfig(t *testing.T) {
	testEnv(t)
	viper.Set("profile.background", "backend engineer")
	viper.Set("profile.screens", []string{"0"})

	p := profileFromConfig()
	assert.Equal(t, "backend engineer", p.Background)
	assert.Equal(t, 30*time.Second, p.CaptureInterval)
	assert.Equal(t, 30*time.Minute, p.ReminderInterval)
	assert.Equal(t, []string{"0"}, p.Screens)
}
