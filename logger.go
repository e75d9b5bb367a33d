package modbus

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogLevel is an ordered logging threshold so callers that set a level
// by name or ordinal don't need to learn logrus's own type.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelNone // Disables logging
)

var levelToLogrus = map[LogLevel]logrus.Level{
	LevelDebug:   logrus.DebugLevel,
	LevelInfo:    logrus.InfoLevel,
	LevelWarning: logrus.WarnLevel,
	LevelError:   logrus.ErrorLevel,
}

var stringToLevel = map[string]LogLevel{
	"DEBUG":   LevelDebug,
	"INFO":    LevelInfo,
	"WARNING": LevelWarning,
	"ERROR":   LevelError,
	"NONE":    LevelNone,
}

// SimpleLogger is a leveled logger for the core's diagnostic output
// (connection loss, decode errors, discarded RTU frames), backed by
// logrus rather than a hand-rolled formatter. A LevelNone logger discards
// everything, including the cost of formatting.
type SimpleLogger struct {
	mu     sync.Mutex
	level  LogLevel
	entry  *logrus.Entry
}

// NewSimpleLogger creates a SimpleLogger writing to output (os.Stdout if
// nil), tagged with prefix, starting at level.
func NewSimpleLogger(output io.Writer, level LogLevel, prefix string) *SimpleLogger {
	if output == nil {
		output = os.Stdout
	}
	base := logrus.New()
	base.SetOutput(output)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	base.SetLevel(logrus.DebugLevel)
	return &SimpleLogger{
		level: level,
		entry: base.WithField("component", prefix),
	}
}

func (l *SimpleLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *SimpleLogger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetLevelFromString sets the level from a name such as "DEBUG" or
// "warning" (case-insensitive).
func (l *SimpleLogger) SetLevelFromString(levelStr string) error {
	upper := strings.ToUpper(strings.TrimSpace(levelStr))
	if level, ok := stringToLevel[upper]; ok {
		l.SetLevel(level)
		return nil
	}
	return &InvalidArgumentError{Reason: "unknown log level: " + levelStr}
}

func (l *SimpleLogger) logf(level LogLevel, format string, args ...any) {
	if l == nil || l.GetLevel() == LevelNone || level < l.GetLevel() {
		return
	}
	l.entry.Logf(levelToLogrus[level], format, args...)
}

func (l *SimpleLogger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *SimpleLogger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *SimpleLogger) Warnf(format string, args ...any)  { l.logf(LevelWarning, format, args...) }
func (l *SimpleLogger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }

// discardLogger is used when a Client is built without an explicit logger.
var discardLogger = NewSimpleLogger(io.Discard, LevelNone, "modbus")
