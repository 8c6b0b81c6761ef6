// Package logging provides component loggers for shelf backed by
// charmbracelet/log, writing to a rotating file and optionally to stderr.
//
//	if err := logging.Init(logging.Config{Level: "info"}); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	logger := logging.Get("executor")
//	logger.Info("moved file", "from", src, "to", dst)
//
// Loggers obtained before Init discard their output, which keeps library
// packages and tests silent unless the CLI configures logging.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level represents a logging level.
type Level int

// Log levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) charm() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ErrInvalidLevel is returned when an invalid log level string is provided.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a string into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// Config configures the logging system.
type Config struct {
	// Level is the default log level (debug, info, warn, error).
	Level string

	// Path is the log file path. Empty uses DefaultLogPath().
	Path string

	// Rotation configures log file rotation.
	Rotation RotationConfig

	// Components maps component names to level overrides.
	Components map[string]string

	// ConsoleLevel enables stderr output at the given level. Empty disables it.
	ConsoleLevel string
}

// Logger is a component-scoped logger.
type Logger struct {
	file      *log.Logger
	console   *log.Logger
	component string
}

// Debug logs a debug message with key/value pairs.
func (l *Logger) Debug(msg string, args ...any) { l.emit(LevelDebug, msg, args...) }

// Info logs an info message with key/value pairs.
func (l *Logger) Info(msg string, args ...any) { l.emit(LevelInfo, msg, args...) }

// Warn logs a warning message with key/value pairs.
func (l *Logger) Warn(msg string, args ...any) { l.emit(LevelWarn, msg, args...) }

// Error logs an error message with key/value pairs.
func (l *Logger) Error(msg string, args ...any) { l.emit(LevelError, msg, args...) }

// With returns a logger that adds args to every entry.
func (l *Logger) With(args ...any) *Logger {
	child := &Logger{file: l.file.With(args...), component: l.component}
	if l.console != nil {
		child.console = l.console.With(args...)
	}
	return child
}

// Component returns the component name.
func (l *Logger) Component() string { return l.component }

func (l *Logger) emit(level Level, msg string, args ...any) {
	write(l.file, level, msg, args...)
	if l.console != nil {
		write(l.console, level, msg, args...)
	}
}

func write(logger *log.Logger, level Level, msg string, args ...any) {
	switch level {
	case LevelDebug:
		logger.Debug(msg, args...)
	case LevelInfo:
		logger.Info(msg, args...)
	case LevelWarn:
		logger.Warn(msg, args...)
	case LevelError:
		logger.Error(msg, args...)
	}
}

type state struct {
	mu           sync.RWMutex
	initialized  bool
	writer       *RotatingWriter
	level        Level
	components   map[string]Level
	consoleLevel *Level
	loggers      map[string]*Logger
}

var global = &state{
	loggers:    make(map[string]*Logger),
	components: make(map[string]Level),
}

// Init configures logging. Loggers handed out earlier are rebuilt so they
// pick up the new configuration.
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	components := make(map[string]Level, len(cfg.Components))
	for comp, lvl := range cfg.Components {
		parsed, err := ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		components[comp] = parsed
	}

	var consoleLevel *Level
	if cfg.ConsoleLevel != "" {
		parsed, err := ParseLevel(cfg.ConsoleLevel)
		if err != nil {
			return fmt.Errorf("parsing console level: %w", err)
		}
		consoleLevel = &parsed
	}

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}
	writer, err := NewRotatingWriter(path, cfg.Rotation)
	if err != nil {
		return fmt.Errorf("creating log writer: %w", err)
	}

	global.mu.Lock()
	defer global.mu.Unlock()

	if global.writer != nil {
		_ = global.writer.Close()
	}
	global.writer = writer
	global.level = level
	global.components = components
	global.consoleLevel = consoleLevel
	global.initialized = true

	for component, logger := range global.loggers {
		*logger = *build(component)
	}
	return nil
}

// Get returns the logger for component, creating it on first use.
func Get(component string) *Logger {
	global.mu.RLock()
	logger, ok := global.loggers[component]
	global.mu.RUnlock()
	if ok {
		return logger
	}

	global.mu.Lock()
	defer global.mu.Unlock()
	if logger, ok := global.loggers[component]; ok {
		return logger
	}
	logger = build(component)
	global.loggers[component] = logger
	return logger
}

// build creates a logger for component. Must be called with global.mu held.
func build(component string) *Logger {
	level := global.level
	if override, ok := global.components[component]; ok {
		level = override
	}

	if !global.initialized {
		return &Logger{
			file:      log.NewWithOptions(io.Discard, log.Options{Level: level.charm(), Prefix: component}),
			component: component,
		}
	}

	logger := &Logger{
		file: log.NewWithOptions(global.writer, log.Options{
			Level:           level.charm(),
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
		}),
		component: component,
	}
	if global.consoleLevel != nil {
		logger.console = log.NewWithOptions(os.Stderr, log.Options{
			Level:           global.consoleLevel.charm(),
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
			Prefix:          component,
		})
	}
	return logger
}

// Close flushes and closes the log file. Loggers fall back to discarding output.
func Close() error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if !global.initialized {
		return nil
	}
	global.initialized = false

	var err error
	if global.writer != nil {
		err = global.writer.Close()
		global.writer = nil
	}
	for component, logger := range global.loggers {
		*logger = *build(component)
	}
	if err != nil {
		return fmt.Errorf("closing log writer: %w", err)
	}
	return nil
}

// DefaultLogPath returns $XDG_STATE_HOME/shelf/shelf.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "shelf", "shelf.log")
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		Path:     DefaultLogPath(),
		Rotation: DefaultRotationConfig(),
	}
}
