// Package config provides error definitions for configuration management
package config

import "errors"

// Configuration validation errors
var (
	ErrInvalidAppName         = errors.New("invalid application name")
	ErrInvalidEnvironment     = errors.New("invalid environment")
	ErrInvalidLogLevel        = errors.New("invalid log level")
	ErrInvalidLogFormat       = errors.New("invalid log format")
	ErrInvalidLogOutput       = errors.New("invalid log output")
	ErrInvalidEffectCapacity  = errors.New("invalid effect table capacity")
	ErrInvalidInboxSize       = errors.New("invalid inbox size")
	ErrInvalidMailboxCapacity = errors.New("invalid mailbox capacity")
)

// Configuration loading errors
var (
	ErrConfigFileNotFound = errors.New("configuration file not found")
	ErrConfigWatchError   = errors.New("configuration watch error")
)
