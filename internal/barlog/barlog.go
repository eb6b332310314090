// Package barlog is a small leveled logger in plain text (fmt.Fprintf to a
// stream), writing through a lumberjack.Logger so long-running daemon
// processes rotate their log file instead of growing unbounded.
package barlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is a logging severity, ordered low to high.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

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

func parseLevel(s string) Level {
	switch s {
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

// Logger writes leveled, timestamped lines to a destination writer, which
// is a *lumberjack.Logger when a log file is configured.
type Logger struct {
	mu      sync.Mutex
	out     io.Writer
	minimum Level
}

var std = New(LevelInfo, os.Stderr)

// Configure points the package-level logger at path (rotated via
// lumberjack) or, if path is empty, stderr.
func Configure(levelName, path string, maxSizeMB, maxBackups, maxAgeDays int) {
	var out io.Writer = os.Stderr
	if path != "" {
		out = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   true,
		}
	}
	std = New(parseLevel(levelName), out)
}

// New builds a Logger writing to out at or above minimum.
func New(minimum Level, out io.Writer) *Logger {
	return &Logger{out: out, minimum: minimum}
}

func (l *Logger) log(level Level, format string, args ...any) {
	if level < l.minimum {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s [%s] %s\n", time.Now().UTC().Format(time.RFC3339), level, fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, format, args...) }

// Package-level convenience functions writing through the std logger.
func Debugf(format string, args ...any) { std.Debugf(format, args...) }
func Infof(format string, args ...any)  { std.Infof(format, args...) }
func Warnf(format string, args ...any)  { std.Warnf(format, args...) }
func Errorf(format string, args ...any) { std.Errorf(format, args...) }
