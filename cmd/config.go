package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/focus/internal/analysis"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "focus"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage focus configuration.

Running bare 'focus config' is the same as 'focus config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configValidateKeyCmd = &cobra.Command{
	Use:   "validate-key",
	Short: "Check that the configured provider accepts the API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configValidateKeyRun(cmd.Context())
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configValidateKeyCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# focus configuration
# See: focus config show (for effective values and sources)

# State/data directory (default: ~/.config/focus)
# state_dir: {{ .StateDir }}

# SQLite database path (default: ~/.config/focus/focus.db)
# db_path: {{ .DBPath }}

# Analysis provider: anthropic or gemini
provider: "{{ .Provider }}"

anthropic:
  # API key (or set ANTHROPIC_API_KEY / FOCUS_ANTHROPIC_API_KEY)
  api_key: ""
  model: "{{ .AnthropicModel }}"

gemini:
  # API key (or set GEMINI_API_KEY / FOCUS_GEMINI_API_KEY)
  api_key: ""
  model: "{{ .GeminiModel }}"

# Defaults for sessions that do not set them
profile:
  # A few sentences about you and your work, included in every analysis
  background: "{{ .Background }}"
  capture_interval_sec: {{ .CaptureIntervalSec }}
  reminder_minutes: {{ .ReminderMinutes }}

screen:
  # Read screens from image files in this directory instead of capturing
  dir: "{{ .ScreenDir }}"
  thumbnail_width: {{ .ThumbnailWidth }}

serve:
  port: {{ .ServePort }}

notify:
  # Show OS notifications for distractions and reminders
  enabled: {{ .NotifyEnabled }}

log:
  # debug, info, warn or error
  level: "{{ .LogLevel }}"
  # console or json
  format: "{{ .LogFormat }}"
`

type configTemplateData struct {
	StateDir           string
	DBPath             string
	Provider           string
	AnthropicModel     string
	GeminiModel        string
	Background         string
	CaptureIntervalSec int
	ReminderMinutes    int
	ScreenDir          string
	ThumbnailWidth     int
	ServePort          int
	NotifyEnabled      bool
	LogLevel           string
	LogFormat          string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		StateDir:           viper.GetString("state_dir"),
		DBPath:             viper.GetString("db_path"),
		Provider:           viper.GetString("provider"),
		AnthropicModel:     viper.GetString("anthropic.model"),
		GeminiModel:        viper.GetString("gemini.model"),
		Background:         viper.GetString("profile.background"),
		CaptureIntervalSec: viper.GetInt("profile.capture_interval_sec"),
		ReminderMinutes:    viper.GetInt("profile.reminder_minutes"),
		ScreenDir:          viper.GetString("screen.dir"),
		ThumbnailWidth:     viper.GetInt("screen.thumbnail_width"),
		ServePort:          viper.GetInt("serve.port"),
		NotifyEnabled:      viper.GetBool("notify.enabled"),
		LogLevel:           viper.GetString("log.level"),
		LogFormat:          viper.GetString("log.format"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
	Secret bool
}

var configKeys = []configKeyInfo{
	{Key: "state_dir", EnvVar: "FOCUS_STATE_DIR"},
	{Key: "db_path", EnvVar: "FOCUS_DB_PATH"},
	{Key: "provider", EnvVar: "FOCUS_PROVIDER"},
	{Key: "anthropic.api_key", EnvVar: "FOCUS_ANTHROPIC_API_KEY", Secret: true},
	{Key: "anthropic.model", EnvVar: "FOCUS_ANTHROPIC_MODEL"},
	{Key: "gemini.api_key", EnvVar: "FOCUS_GEMINI_API_KEY", Secret: true},
	{Key: "gemini.model", EnvVar: "FOCUS_GEMINI_MODEL"},
	{Key: "profile.background", EnvVar: "FOCUS_PROFILE_BACKGROUND"},
	{Key: "profile.capture_interval_sec", EnvVar: "FOCUS_PROFILE_CAPTURE_INTERVAL_SEC"},
	{Key: "profile.reminder_minutes", EnvVar: "FOCUS_PROFILE_REMINDER_MINUTES"},
	{Key: "screen.dir", EnvVar: "FOCUS_SCREEN_DIR"},
	{Key: "screen.thumbnail_width", EnvVar: "FOCUS_SCREEN_THUMBNAIL_WIDTH"},
	{Key: "serve.port", EnvVar: "FOCUS_SERVE_PORT"},
	{Key: "notify.enabled", EnvVar: "FOCUS_NOTIFY_ENABLED"},
	{Key: "log.level", EnvVar: "FOCUS_LOG_LEVEL"},
	{Key: "log.format", EnvVar: "FOCUS_LOG_FORMAT"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		if k.Secret {
			val = maskSecret(viper.GetString(k.Key))
		}
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-30s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

// maskSecret keeps only the last four characters of a credential.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

func configValidateKeyRun(ctx context.Context) error {
	client, err := newAnalysisClient()
	if err != nil {
		return err
	}
	provider := viper.GetString("provider")
	if client == nil {
		return fmt.Errorf("no API key configured for provider %s", provider)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := client.ValidateKey(ctx); err != nil {
		if analysis.IsAuthFailure(err) {
			return fmt.Errorf("%s rejected the API key: %w", provider, err)
		}
		return fmt.Errorf("validate key: %w", err)
	}
	ui.Success("API key accepted by %s", provider)
	return nil
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'focus config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
