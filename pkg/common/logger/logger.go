package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Logger is a thin wrapper around the standard logger that provides leveled logging.
// A Logger created with Named tags every line with its component.
type Logger struct {
	component string
}

// LogLevel represents the logging level
type LogLevel int

const (
	// DebugLevel logs are typically verbose
	DebugLevel LogLevel = iota
	// InfoLevel is the default logging priority
	InfoLevel
	// WarnLevel logs are warnings
	WarnLevel
	// ErrorLevel logs are high-priority
	ErrorLevel
)

var levelNames = map[LogLevel]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
}

var (
	mu           sync.Mutex
	out          = log.New(os.Stdout, "", log.LstdFlags)
	currentLevel = InfoLevel
	root         = &Logger{}
)

// Initialize sets up the global logger level based on input string (e.g., "debug", "info", "warn", "error")
func Initialize(level string) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		currentLevel = DebugLevel
		out.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	case "warn", "warning":
		currentLevel = WarnLevel
		out.SetFlags(log.Ldate | log.Ltime)
	case "error":
		currentLevel = ErrorLevel
		out.SetFlags(log.Ldate | log.Ltime)
	default:
		currentLevel = InfoLevel
		out.SetFlags(log.Ldate | log.Ltime)
	}
}

// SetOutput redirects all loggers. Tests use it to capture or silence output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out.SetOutput(w)
}

// Named returns a logger whose lines carry the given component name.
func Named(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) log(level LogLevel, format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if level < currentLevel {
		return
	}
	prefix := fmt.Sprintf("[%s] ", levelNames[level])
	if l.component != "" {
		prefix += l.component + ": "
	}
	out.SetPrefix(prefix)
	_ = out.Output(3, fmt.Sprintf(format, v...))
}

func (l *Logger) Debug(format string, v ...interface{}) { l.log(DebugLevel, format, v...) }
func (l *Logger) Info(format string, v ...interface{})  { l.log(InfoLevel, format, v...) }
func (l *Logger) Warn(format string, v ...interface{})  { l.log(WarnLevel, format, v...) }
func (l *Logger) Error(format string, v ...interface{}) { l.log(ErrorLevel, format, v...) }

// Package-level helpers
func Debug(format string, v ...interface{}) { root.log(DebugLevel, format, v...) }
func Info(format string, v ...interface{})  { root.log(InfoLevel, format, v...) }
func Warn(format string, v ...interface{})  { root.log(WarnLevel, format, v...) }
func Error(format string, v ...interface{}) { root.log(ErrorLevel, format, v...) }
