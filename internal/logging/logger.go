// Package logging provides the levelled key/value logger used by the CLI and
// the tools. Any types.Logger can be passed to the client instead.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents log level
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a string into a Level, defaulting to info
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

// redactedKeys never have their values written out
var redactedKeys = []string{"token", "password", "secret", "authorization"}

// SimpleLogger writes "[module] LEVEL: msg k=v ..." lines
type SimpleLogger struct {
	module string
	level  *atomic.Int32
	logger *log.Logger
	closer io.Closer
}

// NewSimpleLogger creates a logger writing to stderr
func NewSimpleLogger(module string, level Level) *SimpleLogger {
	return NewSimpleLoggerWithWriter(module, level, os.Stderr)
}

// NewSimpleLoggerWithWriter creates a logger writing to w
func NewSimpleLoggerWithWriter(module string, level Level, w io.Writer) *SimpleLogger {
	lvl := &atomic.Int32{}
	lvl.Store(int32(level))
	return &SimpleLogger{
		module: module,
		level:  lvl,
		logger: log.New(w, "", log.LstdFlags),
	}
}

// FileRotationConfig contains file logging rotation settings
type FileRotationConfig struct {
	Path       string `yaml:"path" json:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"maxSizeMb"`
	MaxBackups int    `yaml:"max_backups" json:"maxBackups"`
	MaxAge     int    `yaml:"max_age_days" json:"maxAgeDays"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// NewLoggerWithFile creates a logger that writes to stderr and, when
// fileConfig has a path, to a rotated log file as well
func NewLoggerWithFile(module string, level Level, fileConfig *FileRotationConfig) *SimpleLogger {
	if fileConfig == nil || fileConfig.Path == "" {
		return NewSimpleLogger(module, level)
	}

	maxSizeMB := fileConfig.MaxSizeMB
	if maxSizeMB == 0 {
		maxSizeMB = 10
	}
	maxBackups := fileConfig.MaxBackups
	if maxBackups == 0 {
		maxBackups = 3
	}
	maxAge := fileConfig.MaxAge
	if maxAge == 0 {
		maxAge = 28
	}

	fileWriter := &lumberjack.Logger{
		Filename:   fileConfig.Path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   fileConfig.Compress,
	}

	l := NewSimpleLoggerWithWriter(module, level, io.MultiWriter(os.Stderr, fileWriter))
	l.closer = fileWriter
	return l
}

// SetLevel changes the minimum level; safe to call while logging
func (l *SimpleLogger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// Level returns the current minimum level
func (l *SimpleLogger) Level() Level {
	return Level(l.level.Load())
}

// WithModule returns a logger sharing output and level under another module name
func (l *SimpleLogger) WithModule(module string) *SimpleLogger {
	return &SimpleLogger{
		module: module,
		level:  l.level,
		logger: l.logger,
		closer: l.closer,
	}
}

// Close releases the log file, if any
func (l *SimpleLogger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func (l *SimpleLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log(LevelDebug, msg, keysAndValues...)
}

func (l *SimpleLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log(LevelInfo, msg, keysAndValues...)
}

func (l *SimpleLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log(LevelWarn, msg, keysAndValues...)
}

func (l *SimpleLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log(LevelError, msg, keysAndValues...)
}

func (l *SimpleLogger) log(level Level, msg string, keysAndValues ...interface{}) {
	if level < l.Level() {
		return
	}
	l.logger.Println(l.format(level, msg, keysAndValues...))
}

func (l *SimpleLogger) format(level Level, msg string, keysAndValues ...interface{}) string {
	message := msg
	if len(keysAndValues) > 0 {
		pairs := make([]string, 0, len(keysAndValues)/2)
		for i := 0; i+1 < len(keysAndValues); i += 2 {
			key := fmt.Sprint(keysAndValues[i])
			value := keysAndValues[i+1]
			if isRedacted(key) {
				value = "[redacted]"
			}
			pairs = append(pairs, fmt.Sprintf("%s=%v", key, value))
		}
		if len(pairs) > 0 {
			message = msg + " " + strings.Join(pairs, " ")
		}
	}
	return fmt.Sprintf("[%s] %s: %s", l.module, level, message)
}

func isRedacted(key string) bool {
	k := strings.ToLower(key)
	for _, r := range redactedKeys {
		if k == r {
			return true
		}
	}
	return false
}

// Discard is a logger that drops everything
var Discard = NewSimpleLoggerWithWriter("discard", LevelError+1, io.Discard)
