package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
)

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

// Logger provides structured key=value logging for the service
type Logger struct {
	prefix string
	min    level
	fields []interface{}
	logger *log.Logger
}

// NewLogger creates a new logger with a prefix. The minimum level is
// taken from LOG_LEVEL (debug, info, warn, error) and defaults to info.
func NewLogger(prefix string) *Logger {
	return &Logger{
		prefix: prefix,
		min:    parseLevel(os.Getenv("LOG_LEVEL")),
		logger: log.New(os.Stdout, fmt.Sprintf("[%s] ", prefix), log.LstdFlags),
	}
}

// With returns a logger that includes the given key-value pairs on every line
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	fields := make([]interface{}, 0, len(l.fields)+len(keysAndValues))
	fields = append(fields, l.fields...)
	fields = append(fields, keysAndValues...)
	return &Logger{
		prefix: l.prefix,
		min:    l.min,
		fields: fields,
		logger: l.logger,
	}
}

// Info logs an informational message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.logWithKV(levelInfo, "INFO", msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.logWithKV(levelWarn, "WARN", msg, keysAndValues...)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.logWithKV(levelError, "ERROR", msg, keysAndValues...)
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.logWithKV(levelDebug, "DEBUG", msg, keysAndValues...)
}

func (l *Logger) logWithKV(lv level, tag, msg string, keysAndValues ...interface{}) {
	if lv < l.min {
		return
	}
	kvStr := ""
	for _, kvs := range [][]interface{}{l.fields, keysAndValues} {
		for i := 0; i+1 < len(kvs); i += 2 {
			kvStr += fmt.Sprintf(" %v=%v", kvs[i], kvs[i+1])
		}
	}
	l.logger.Printf("[%s] %s%s", tag, msg, kvStr)
}

func parseLevel(s string) level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return levelDebug
	case "warn", "warning":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}
