// Package logging provides the leveled key-value logger used by both binaries.
//
// Output always goes to stderr: stdout of the MCP server carries the protocol.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level orders log severities.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// LevelEnvVar selects the minimum level ("debug", "info", "warn", "error").
const LevelEnvVar = "UI_REGIONS_LOG_LEVEL"

// ParseLevel maps a level name to a Level, defaulting to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger provides structured logging with a component prefix
type Logger struct {
	prefix string
	level  Level
	logger *log.Logger
}

// New creates a stderr logger whose level comes from UI_REGIONS_LOG_LEVEL.
func New(prefix string) *Logger {
	return NewWithWriter(prefix, os.Stderr, ParseLevel(os.Getenv(LevelEnvVar)))
}

// NewWithWriter creates a logger writing to w at the given minimum level.
func NewWithWriter(prefix string, w io.Writer, level Level) *Logger {
	return &Logger{
		prefix: prefix,
		level:  level,
		logger: log.New(w, fmt.Sprintf("[%s] ", prefix), log.LstdFlags),
	}
}

// With returns a logger sharing the output whose prefix is extended by name.
func (l *Logger) With(name string) *Logger {
	prefix := l.prefix + "/" + name
	return &Logger{
		prefix: prefix,
		level:  l.level,
		logger: log.New(l.logger.Writer(), fmt.Sprintf("[%s] ", prefix), l.logger.Flags()),
	}
}

// DebugEnabled reports whether Debug calls produce output.
func (l *Logger) DebugEnabled() bool {
	return l.level <= LevelDebug
}

// Info logs an informational message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.logWithKV(LevelInfo, "INFO", msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.logWithKV(LevelWarn, "WARN", msg, keysAndValues...)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.logWithKV(LevelError, "ERROR", msg, keysAndValues...)
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.logWithKV(LevelDebug, "DEBUG", msg, keysAndValues...)
}

func (l *Logger) logWithKV(level Level, tag, msg string, keysAndValues ...interface{}) {
	if level < l.level {
		return
	}
	var sb strings.Builder
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	l.logger.Printf("[%s] %s%s", tag, msg, sb.String())
}
