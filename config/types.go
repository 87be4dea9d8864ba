// Package config provides configuration management for the Cella engine
package config

import (
	"io"
	"log/slog"
	"os"

	"github.com/cellact/cella/effects"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// String returns the string representation of Environment
func (e Environment) String() string {
	return string(e)
}

// IsValid checks if the environment is valid
func (e Environment) IsValid() bool {
	switch e {
	case EnvDevelopment, EnvTesting, EnvStaging, EnvProduction:
		return true
	default:
		return false
	}
}

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// String returns the string representation of LogLevel
func (l LogLevel) String() string {
	return string(l)
}

// IsValid checks if the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// slogLevel maps the configured level to its slog equivalent
func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config represents the complete Cella configuration
type Config struct {
	// Application configuration
	App AppConfig `yaml:"app" json:"app"`

	// Logging configuration
	Log LogConfig `yaml:"log" json:"log"`

	// Cell engine configuration
	Cell CellConfig `yaml:"cell" json:"cell"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	// Name is the application name
	Name string `yaml:"name" json:"name"`

	// Environment is the deployment environment
	Environment Environment `yaml:"environment" json:"environment"`

	// Debug enables debug behavior
	Debug bool `yaml:"debug" json:"debug"`
}

// LogConfig contains logging settings
type LogConfig struct {
	// Level is the minimum log level
	Level LogLevel `yaml:"level" json:"level"`

	// Format selects the handler: "text" or "json"
	Format string `yaml:"format" json:"format"`

	// Output selects the destination: "stdout" or "stderr"
	Output string `yaml:"output" json:"output"`
}

// CellConfig contains per-cell engine settings
type CellConfig struct {
	// EffectTableCapacity is the number of outstanding-effect correlation
	// slots per cell
	EffectTableCapacity int `yaml:"effect_table_capacity" json:"effect_table_capacity"`

	// InboxSize is the host-to-cell envelope channel buffer
	InboxSize int `yaml:"inbox_size" json:"inbox_size"`

	// MailboxCapacity is the initial mailbox ring capacity
	MailboxCapacity int `yaml:"mailbox_capacity" json:"mailbox_capacity"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "cella",
			Environment: EnvDevelopment,
			Debug:       false,
		},
		Log: LogConfig{
			Level:  LogLevelInfo,
			Format: "text",
			Output: "stderr",
		},
		Cell: CellConfig{
			EffectTableCapacity: effects.DefaultTableCapacity,
			InboxSize:           256,
			MailboxCapacity:     16,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return ErrInvalidAppName
	}
	if !c.App.Environment.IsValid() {
		return ErrInvalidEnvironment
	}
	if !c.Log.Level.IsValid() {
		return ErrInvalidLogLevel
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return ErrInvalidLogFormat
	}
	switch c.Log.Output {
	case "stdout", "stderr":
	default:
		return ErrInvalidLogOutput
	}
	if c.Cell.EffectTableCapacity <= 0 {
		return ErrInvalidEffectCapacity
	}
	if c.Cell.InboxSize <= 0 {
		return ErrInvalidInboxSize
	}
	if c.Cell.MailboxCapacity <= 0 {
		return ErrInvalidMailboxCapacity
	}
	return nil
}

// NewLogger builds a slog.Logger from the logging configuration
func (c *LogConfig) NewLogger() *slog.Logger {
	var out io.Writer = os.Stderr
	if c.Output == "stdout" {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: c.Level.slogLevel()}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}
