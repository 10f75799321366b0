package logging

import (
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var levelNames = map[LogLevel]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown(" + strconv.Itoa(int(l)) + ")"
}

// ParseLevel maps a level name to a LogLevel. Unknown names and the empty
// string fall back to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(s) {
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

var (
	currentLevel LogLevel
	levelOnce    sync.Once
)

// GetLevel returns the active log level. The level is read once from the
// environment: DEBUG=1 forces debug, otherwise LOG_LEVEL decides.
func GetLevel() LogLevel {
	levelOnce.Do(func() {
		switch strings.ToLower(os.Getenv("DEBUG")) {
		case "1", "true", "yes", "on":
			currentLevel = LevelDebug
		default:
			currentLevel = ParseLevel(os.Getenv("LOG_LEVEL"))
		}
	})
	return currentLevel
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

func emit(level LogLevel, tag, format string, args ...interface{}) {
	if GetLevel() <= level {
		log.Printf(tag+" "+format, args...)
	}
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	emit(LevelDebug, "[DEBUG]", format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	emit(LevelInfo, "[INFO]", format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	emit(LevelWarn, "[WARN]", format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	emit(LevelError, "[ERROR]", format, args...)
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	log.Fatalf("[FATAL] "+format, args...)
}

// Printf is a pass-through to log.Printf for messages that should always print
func Printf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// Println is a pass-through to log.Println for messages that should always print
func Println(args ...interface{}) {
	log.Println(args...)
}
