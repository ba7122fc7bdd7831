package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "INFO"
}

// ParseLevel maps a level name to a LogLevel. Unknown names fall back to INFO.
func ParseLevel(name string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// sink is the level and output shared by a logger and everything Named from it.
type sink struct {
	mu     sync.Mutex
	level  LogLevel
	logger *log.Logger
}

type Logger struct {
	sink   *sink
	prefix string
}

func NewLogger(level LogLevel) *Logger {
	return &Logger{
		sink: &sink{
			level:  level,
			logger: log.New(os.Stdout, "", 0),
		},
	}
}

// SetLevel sets the minimum level that is written
func (l *Logger) SetLevel(level LogLevel) {
	l.sink.mu.Lock()
	l.sink.level = level
	l.sink.mu.Unlock()
}

// SetOutput redirects log output
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	l.sink.logger = log.New(w, "", 0)
	l.sink.mu.Unlock()
}

// Named returns a logger that tags every entry with component. Level and
// output stay shared with l: changing either on one affects both.
func (l *Logger) Named(component string) *Logger {
	return &Logger{sink: l.sink, prefix: component}
}

// Enabled reports whether entries at level would be written.
func (l *Logger) Enabled(level LogLevel) bool {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return level >= l.sink.level
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Fatal logs and exits the process
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.log(LevelFatal, format, args...)
	os.Exit(1)
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if level < l.sink.level {
		return
	}

	// caller of Debug/Info/... or of the package-level helpers
	_, file, line, ok := runtime.Caller(2)
	if ok && strings.HasSuffix(file, "pkg/log/logger.go") {
		_, file, line, ok = runtime.Caller(3)
	}
	fileName := "unknown"
	if ok {
		fileName = filepath.Base(file)
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)

	var logEntry string
	if l.prefix != "" {
		logEntry = fmt.Sprintf("[%s] [%s] [%s:%d] [%s] %s",
			timestamp, levelNames[level], fileName, line, l.prefix, message)
	} else {
		logEntry = fmt.Sprintf("[%s] [%s] [%s:%d] %s",
			timestamp, levelNames[level], fileName, line, message)
	}

	l.sink.logger.Println(logEntry)
}

// Global logger instance
var globalLogger *Logger

// InitLogger replaces the global logger
func InitLogger(level LogLevel) {
	globalLogger = NewLogger(level)
}

func GetLogger() *Logger {
	if globalLogger == nil {
		globalLogger = NewLogger(LevelInfo)
	}
	return globalLogger
}

// Convenience functions
func Debug(format string, args ...interface{}) {
	GetLogger().Debug(format, args...)
}

func Info(format string, args ...interface{}) {
	GetLogger().Info(format, args...)
}

func Warn(format string, args ...interface{}) {
	GetLogger().Warn(format, args...)
}

func Error(format string, args ...interface{}) {
	GetLogger().Error(format, args...)
}

func Fatal(format string, args ...interface{}) {
	GetLogger().Fatal(format, args...)
}
