// Package logging provides categorized file-based logging for browseriq.
// Logs are written to <dir>/ with one file per category per day. When debug
// mode is off every logger is a silent no-op, so instrumentation callbacks
// and analysis workers never pay for formatting.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category identifies a log stream.
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup and configuration
	CategorySession  Category = "session"  // Session lifecycle
	CategoryEvents   Category = "events"   // Event buffering and ingestion
	CategoryAnalysis Category = "analysis" // Analysis engine activity
	CategoryLLM      Category = "llm"      // Provider requests and retries
	CategoryReport   Category = "report"   // Report sink writes
	CategoryMonitor  Category = "monitor"  // Orchestrator, periodic loop
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

var (
	mu       sync.RWMutex
	loggers  = make(map[Category]*Logger)
	logsDir  string
	enabled  bool
	logLevel = LevelInfo
)

// Logger wraps a standard logger bound to one category file.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

// Initialize sets the log directory and enables logging. Level is one of
// "debug", "info", "warn", "error"; anything else means info.
func Initialize(dir string, level string) error {
	mu.Lock()
	defer mu.Unlock()

	if dir == "" {
		return fmt.Errorf("log directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	logsDir = dir
	enabled = true
	switch level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	return nil
}

// Enabled reports whether logging has been initialized.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// Get returns (or creates) the logger for a category. Returns a no-op
// logger until Initialize has been called.
func Get(category Category) *Logger {
	mu.RLock()
	if !enabled || logsDir == "" {
		mu.RUnlock()
		return &Logger{category: category}
	}
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] could not open %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

// CloseAll closes every open log file. Call at shutdown.
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
	enabled = false
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	l.logger.Printf("[DEBUG] %s", fmt.Sprintf(format, args...))
}

// Info logs at info level.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	l.logger.Printf("[INFO] %s", fmt.Sprintf(format, args...))
}

// Warn logs at warning level.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	l.logger.Printf("[WARN] %s", fmt.Sprintf(format, args...))
}

// Error logs at error level. Always written when the logger exists.
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[ERROR] %s", fmt.Sprintf(format, args...))
}

// Convenience functions; no-ops until Initialize.

func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }
func BootError(format string, args ...interface{}) {
	Get(CategoryBoot).Error(format, args...)
}

func Session(format string, args ...interface{}) { Get(CategorySession).Info(format, args...) }
func SessionWarn(format string, args ...interface{}) {
	Get(CategorySession).Warn(format, args...)
}
func SessionError(format string, args ...interface{}) {
	Get(CategorySession).Error(format, args...)
}

func Events(format string, args ...interface{}) { Get(CategoryEvents).Info(format, args...) }
func EventsDebug(format string, args ...interface{}) {
	Get(CategoryEvents).Debug(format, args...)
}
func EventsWarn(format string, args ...interface{}) {
	Get(CategoryEvents).Warn(format, args...)
}

func Analysis(format string, args ...interface{}) { Get(CategoryAnalysis).Info(format, args...) }
func AnalysisDebug(format string, args ...interface{}) {
	Get(CategoryAnalysis).Debug(format, args...)
}
func AnalysisError(format string, args ...interface{}) {
	Get(CategoryAnalysis).Error(format, args...)
}

func LLM(format string, args ...interface{}) { Get(CategoryLLM).Info(format, args...) }
func LLMDebug(format string, args ...interface{}) {
	Get(CategoryLLM).Debug(format, args...)
}
func LLMWarn(format string, args ...interface{}) { Get(CategoryLLM).Warn(format, args...) }
func LLMError(format string, args ...interface{}) {
	Get(CategoryLLM).Error(format, args...)
}

func Report(format string, args ...interface{}) { Get(CategoryReport).Info(format, args...) }
func ReportError(format string, args ...interface{}) {
	Get(CategoryReport).Error(format, args...)
}

func Monitor(format string, args ...interface{}) { Get(CategoryMonitor).Info(format, args...) }
func MonitorWarn(format string, args ...interface{}) {
	Get(CategoryMonitor).Warn(format, args...)
}
func MonitorError(format string, args ...interface{}) {
	Get(CategoryMonitor).Error(format, args...)
}
