package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log = zap.NewNop()

// LogLevel represents the logging level
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// Init initializes the logger with the specified configuration
func Init(development bool, level LogLevel) error {
	var config zap.Config

	if development {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}

	switch LogLevel(strings.ToLower(string(level))) {
	case DebugLevel:
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case WarnLevel:
		config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case ErrorLevel:
		config.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	built, err := config.Build()
	if err != nil {
		return err
	}
	log = built
	return nil
}

// Set replaces the process logger. Tests use it with zaptest/observer cores.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	log = l
}

// Get returns the logger instance
func Get() *zap.Logger {
	return log
}

// Sync flushes any buffered log entries
func Sync() error {
	return log.Sync()
}
