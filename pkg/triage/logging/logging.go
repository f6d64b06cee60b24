// Package logging provides the shared logging system for triage.
//
// Basic usage:
//
//	cfg := logging.Config{Level: "info"}
//	if err := logging.Init(cfg); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Close()
//
//	logger := logging.Get("classifier")
//	logger.Info("job started", "job_id", 42)
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

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

// toCharmLevel converts our Level to charmbracelet/log level.
func (l Level) toCharmLevel() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelInfo:
		return log.InfoLevel
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
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
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

	// Path is the log file path. Empty logs to stderr only.
	Path string

	// Components maps component names to their log levels, overriding
	// the default level per component.
	Components map[string]string
}

// state holds the initialized logging system.
type state struct {
	mu         sync.Mutex
	level      Level
	components map[string]Level
	file       *os.File
	writer     io.Writer
}

var global = &state{
	level:      LevelInfo,
	components: make(map[string]Level),
	writer:     os.Stderr,
}

// Init initializes the logging system from the given config. It may be
// called once per process; later calls replace the previous configuration.
func Init(cfg Config) error {
	level := LevelInfo
	if cfg.Level != "" {
		parsed, err := ParseLevel(cfg.Level)
		if err != nil {
			return err
		}
		level = parsed
	}

	components := make(map[string]Level, len(cfg.Components))
	for name, levelStr := range cfg.Components {
		parsed, err := ParseLevel(levelStr)
		if err != nil {
			return fmt.Errorf("component %q: %w", name, err)
		}
		components[name] = parsed
	}

	var file *os.File
	writer := io.Writer(os.Stderr)
	if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		file = f
		writer = f
	}

	global.mu.Lock()
	defer global.mu.Unlock()
	if global.file != nil {
		_ = global.file.Close()
	}
	global.level = level
	global.components = components
	global.file = file
	global.writer = writer
	return nil
}

// Close releases the log file, if any.
func Close() error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.file == nil {
		return nil
	}
	err := global.file.Close()
	global.file = nil
	global.writer = os.Stderr
	return err
}

// Get returns a logger for the given component. The component name is
// attached to every record, and per-component level overrides from the
// config apply.
func Get(component string) *log.Logger {
	global.mu.Lock()
	defer global.mu.Unlock()

	level := global.level
	if override, ok := global.components[component]; ok {
		level = override
	}

	logger := log.NewWithOptions(global.writer, log.Options{
		ReportTimestamp: true,
		Level:           level.toCharmLevel(),
	})
	return logger.With("component", component)
}
