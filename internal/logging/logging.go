// ABOUTME: Process-wide logger with a printf-style facade over zerolog.
// ABOUTME: Writes JSON lines to a log file, or a console writer on stderr when no file is set.

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu      sync.Mutex
	logger  = zerolog.New(io.Discard)
	prefix  string
	logFile *os.File
)

// ParseLevel maps a config level name to a zerolog level.
// Empty means "error".
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "":
		return zerolog.ErrorLevel, nil
	case "disabled", "off", "none":
		return zerolog.Disabled, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level: %s", level)
	}
	return lvl, nil
}

// InitLogger (re)initializes the global logger. When path is empty output goes
// to stderr. Returns the path actually opened ("" for stderr).
func InitLogger(path, level string) (string, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return "", err
	}

	mu.Lock()
	defer mu.Unlock()

	closeLocked()

	var w io.Writer
	if path == "" {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return "", fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		w = f
	}

	logger = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return path, nil
}

// SetOutput points the logger at w. Used by tests.
func SetOutput(w io.Writer, level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	logger = zerolog.New(w).Level(level)
}

// SetPrefix tags every subsequent entry with a "prefix" field.
func SetPrefix(p string) {
	mu.Lock()
	defer mu.Unlock()
	prefix = p
}

// Close flushes and releases the log file, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	logger = zerolog.New(io.Discard)
}

func closeLocked() {
	if logFile != nil {
		_ = logFile.Sync()
		_ = logFile.Close()
		logFile = nil
	}
}

func emit(ev func(*zerolog.Logger) *zerolog.Event, format string, args ...interface{}) {
	mu.Lock()
	l := logger
	p := prefix
	mu.Unlock()

	e := ev(&l)
	if e == nil {
		return
	}
	if p != "" {
		e = e.Str("prefix", p)
	}
	e.Msgf(format, args...)
}

// Debug logs at debug level.
func Debug(format string, args ...interface{}) {
	emit((*zerolog.Logger).Debug, format, args...)
}

// Info logs at info level.
func Info(format string, args ...interface{}) {
	emit((*zerolog.Logger).Info, format, args...)
}

// Warn logs at warn level.
func Warn(format string, args ...interface{}) {
	emit((*zerolog.Logger).Warn, format, args...)
}

// Error logs at error level.
func Error(format string, args ...interface{}) {
	emit((*zerolog.Logger).Error, format, args...)
}
