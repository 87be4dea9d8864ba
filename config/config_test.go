package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellact/cella/effects"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "cella", config.App.Name)
	assert.Equal(t, EnvDevelopment, config.App.Environment)
	assert.False(t, config.App.Debug)
	assert.Equal(t, LogLevelInfo, config.Log.Level)
	assert.Equal(t, "text", config.Log.Format)
	assert.Equal(t, effects.DefaultTableCapacity, config.Cell.EffectTableCapacity)
	assert.Equal(t, 256, config.Cell.InboxSize)
	assert.Equal(t, 16, config.Cell.MailboxCapacity)

	require.NoError(t, config.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"empty app name", func(c *Config) { c.App.Name = "" }, ErrInvalidAppName},
		{"bad environment", func(c *Config) { c.App.Environment = "qa" }, ErrInvalidEnvironment},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, ErrInvalidLogLevel},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, ErrInvalidLogFormat},
		{"bad log output", func(c *Config) { c.Log.Output = "syslog" }, ErrInvalidLogOutput},
		{"zero effect capacity", func(c *Config) { c.Cell.EffectTableCapacity = 0 }, ErrInvalidEffectCapacity},
		{"negative inbox size", func(c *Config) { c.Cell.InboxSize = -1 }, ErrInvalidInboxSize},
		{"zero mailbox capacity", func(c *Config) { c.Cell.MailboxCapacity = 0 }, ErrInvalidMailboxCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			assert.ErrorIs(t, config.Validate(), tt.wantErr)
		})
	}
}

func TestLoader_LoadFromReader_YAML(t *testing.T) {
	yamlData := `
app:
  name: "test-app"
  environment: "production"
  debug: true
log:
  level: "debug"
  format: "json"
cell:
  effect_table_capacity: 128
`
	config, err := NewLoader().LoadFromReader(strings.NewReader(yamlData), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "test-app", config.App.Name)
	assert.Equal(t, EnvProduction, config.App.Environment)
	assert.True(t, config.App.Debug)
	assert.Equal(t, LogLevelDebug, config.Log.Level)
	assert.Equal(t, "json", config.Log.Format)
	assert.Equal(t, 128, config.Cell.EffectTableCapacity)

	// Unspecified fields keep their defaults.
	assert.Equal(t, "stderr", config.Log.Output)
	assert.Equal(t, 256, config.Cell.InboxSize)
	assert.Equal(t, 16, config.Cell.MailboxCapacity)
}

func TestLoader_LoadFromReader_JSON(t *testing.T) {
	jsonData := `{
		"app": {"name": "json-app", "environment": "staging"},
		"cell": {"inbox_size": 64, "mailbox_capacity": 8}
	}`
	config, err := NewLoader().LoadFromReader(strings.NewReader(jsonData), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "json-app", config.App.Name)
	assert.Equal(t, EnvStaging, config.App.Environment)
	assert.Equal(t, 64, config.Cell.InboxSize)
	assert.Equal(t, 8, config.Cell.MailboxCapacity)
}

func TestLoader_LoadFromReader_InvalidData(t *testing.T) {
	_, err := NewLoader().LoadFromReader(strings.NewReader("{not yaml: ["), FormatYAML)
	assert.Error(t, err)

	_, err = NewLoader().LoadFromReader(strings.NewReader("{broken"), FormatJSON)
	assert.Error(t, err)

	_, err = NewLoader().LoadFromReader(strings.NewReader(""), ConfigFormat("toml"))
	assert.Error(t, err)
}

func TestLoader_LoadFromReader_ValidationFailure(t *testing.T) {
	yamlData := `
log:
  level: "trace"
`
	_, err := NewLoader().LoadFromReader(strings.NewReader(yamlData), FormatYAML)
	assert.ErrorIs(t, err, ErrInvalidLogLevel)
}

func TestLoader_LoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cella.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  name: file-app\n"), 0o644))

	config, err := NewLoader().LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file-app", config.App.Name)

	_, err = NewLoader().LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = NewLoader().LoadFromFile(filepath.Join(dir, "cella.toml"))
	assert.Error(t, err, "unsupported extensions are rejected before reading")
}

func TestLoader_EnvironmentOverrides(t *testing.T) {
	t.Setenv("CELLA_APP_NAME", "env-app")
	t.Setenv("CELLA_APP_DEBUG", "TRUE")
	t.Setenv("CELLA_LOG_LEVEL", "warn")
	t.Setenv("CELLA_CELL_EFFECT_TABLE_CAPACITY", "32")
	t.Setenv("CELLA_CELL_INBOX_SIZE", "not-a-number")

	config, err := NewLoader().Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-app", config.App.Name)
	assert.True(t, config.App.Debug)
	assert.Equal(t, LogLevelWarn, config.Log.Level)
	assert.Equal(t, 32, config.Cell.EffectTableCapacity)
	assert.Equal(t, 256, config.Cell.InboxSize, "unparseable numeric overrides are ignored")
}

func TestLoader_EnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_APP_NAME", "prefixed")
	t.Setenv("CELLA_APP_NAME", "ignored")

	config, err := NewLoader().SetEnvPrefix("MYAPP").Load("")
	require.NoError(t, err)
	assert.Equal(t, "prefixed", config.App.Name)
}

func TestLoader_AutoLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cella.yaml"),
		[]byte("app:\n  name: discovered\n"), 0o644))

	config, err := NewLoader().SetSearchPaths([]string{dir}).AutoLoad()
	require.NoError(t, err)
	assert.Equal(t, "discovered", config.App.Name)

	// No file anywhere falls back to defaults.
	config, err = NewLoader().SetSearchPaths([]string{t.TempDir()}).AutoLoad()
	require.NoError(t, err)
	assert.Equal(t, "cella", config.App.Name)
}

func TestEnvironment_IsValid(t *testing.T) {
	assert.True(t, EnvDevelopment.IsValid())
	assert.True(t, EnvTesting.IsValid())
	assert.True(t, EnvStaging.IsValid())
	assert.True(t, EnvProduction.IsValid())
	assert.False(t, Environment("qa").IsValid())
}

func TestLogLevel_IsValid(t *testing.T) {
	assert.True(t, LogLevelDebug.IsValid())
	assert.True(t, LogLevelError.IsValid())
	assert.False(t, LogLevel("trace").IsValid())
}

func TestLogConfig_NewLogger(t *testing.T) {
	ctx := context.Background()

	logger := (&LogConfig{Level: LogLevelDebug, Format: "json", Output: "stdout"}).NewLogger()
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(ctx, slog.LevelDebug))

	logger = (&LogConfig{Level: LogLevelError, Format: "text", Output: "stderr"}).NewLogger()
	require.NotNil(t, logger)
	assert.False(t, logger.Enabled(ctx, slog.LevelInfo))
}
