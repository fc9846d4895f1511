// Package logging provides structured JSON logging for the studyflow backend.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents a log severity level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

// Fields carries structured context for a log entry.
type Fields map[string]interface{}

// Logger writes structured JSON log entries.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	minLevel Level
}

var (
	global *Logger
	once   sync.Once
)

// Init initializes the global logger. Subsequent calls are no-ops.
func Init(out io.Writer, minLevel Level) {
	once.Do(func() {
		global = &Logger{out: out, minLevel: minLevel}
	})
}

// Get returns the global logger, initializing it with defaults if needed.
func Get() *Logger {
	if global == nil {
		Init(os.Stderr, LevelInfo)
	}
	return global
}

// New returns a logger writing to out. Useful for tests.
func New(out io.Writer, minLevel Level) *Logger {
	return &Logger{out: out, minLevel: minLevel}
}

// ParseLevel maps a level name to its Level; unknown names mean info.
func ParseLevel(name string) Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return LevelDebug
	case "WARN":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

type entry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
	Fields    Fields `json:"fields,omitempty"`
}

func (l *Logger) log(level Level, message string, err error, fields Fields) {
	if level < l.minLevel {
		return
	}

	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     levelNames[level],
		Message:   message,
		Fields:    fields,
	}
	if err != nil {
		e.Error = err.Error()
	}

	data, jsonErr := json.Marshal(e)
	if jsonErr != nil {
		// A field value that cannot be marshaled must not lose the message.
		data, _ = json.Marshal(entry{
			Timestamp: e.Timestamp,
			Level:     e.Level,
			Message:   e.Message,
			Error:     e.Error,
		})
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, string(data))
}

func merge(fields ...Fields) Fields {
	switch len(fields) {
	case 0:
		return nil
	case 1:
		return fields[0]
	}
	merged := make(Fields)
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	return merged
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields ...Fields) {
	l.log(LevelDebug, message, nil, merge(fields...))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields ...Fields) {
	l.log(LevelInfo, message, nil, merge(fields...))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields ...Fields) {
	l.log(LevelWarn, message, nil, merge(fields...))
}

// Error logs an error message with the underlying error attached.
func (l *Logger) Error(message string, err error, fields ...Fields) {
	l.log(LevelError, message, err, merge(fields...))
}

// Convenience functions using the global logger.

func Debug(message string, fields ...Fields) { Get().Debug(message, fields...) }
func Info(message string, fields ...Fields)  { Get().Info(message, fields...) }
func Warn(message string, fields ...Fields)  { Get().Warn(message, fields...) }
func Error(message string, err error, fields ...Fields) {
	Get().Error(message, err, fields...)
}
