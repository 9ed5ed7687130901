package log

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Level represents a log level type
type Level int

// ExitHandler is executed after a fatal level message has been written.
// Default. It will exit with error code 1 (unix catch all error code)
var ExitHandler = func() {
	os.Exit(1)
}

const (
	// DebugLevel represents DEBUG log level
	DebugLevel Level = iota

	// InfoLevel represents INFO log level
	InfoLevel

	// WarningLevel represents WARNING log level
	WarningLevel

	// ErrorLevel represents ERROR log level
	ErrorLevel

	// FatalLevel represents FATAL log level
	FatalLevel
)

// Logger represents a common logger interface.
type Logger interface {
	io.Closer

	Level() Level
	Log(level Level, pkg string, file string, line int, format string, args ...interface{})
}

// Debugf writes a 'debug' message to configured logger.
func Debugf(format string, args ...interface{}) {
	logf(DebugLevel, format, args...)
}

// Infof writes a 'info' message to configured logger.
func Infof(format string, args ...interface{}) {
	logf(InfoLevel, format, args...)
}

// Warnf writes a 'warn' message to configured logger.
func Warnf(format string, args ...interface{}) {
	logf(WarningLevel, format, args...)
}

// Errorf writes an 'error' message to configured logger.
func Errorf(format string, args ...interface{}) {
	logf(ErrorLevel, format, args...)
}

// Fatalf writes a 'fatal' message to configured logger and calls ExitHandler.
func Fatalf(format string, args ...interface{}) {
	logf(FatalLevel, format, args...)
}

// Error writes an error value to configured logger.
func Error(err error) {
	logf(ErrorLevel, "%v", err)
}

// Fatal writes an error value to the configured logger and calls ExitHandler.
func Fatal(err error) {
	logf(FatalLevel, "%v", err)
}

// logf must be called directly by the exported helpers, getCallerInfo skips exactly these frames.
func logf(level Level, format string, args ...interface{}) {
	inst := instance()
	if inst.Level() > level {
		return
	}
	ci := getCallerInfo()
	inst.Log(level, ci.pkg, ci.filename, ci.line, format, args...)
	if level == FatalLevel {
		ExitHandler()
	}
}

var (
	instMu sync.RWMutex
	inst   Logger = &logger{level: InfoLevel, out: os.Stderr}
)

// Set replaces the global logger. The previous logger is closed.
func Set(logger Logger) {
	instMu.Lock()
	_ = inst.Close()
	inst = logger
	instMu.Unlock()
}

func instance() Logger {
	instMu.RLock()
	defer instMu.RUnlock()
	return inst
}

type logger struct {
	mu    sync.Mutex
	level Level
	out   io.Writer
	files []io.WriteCloser
	b     strings.Builder
}

type callerInfo struct {
	pkg      string
	filename string
	line     int
}

// New returns a logger writing messages of at least the given level to out and all files.
// An empty level is interpreted as "info".
func New(level string, out io.Writer, files ...io.WriteCloser) (Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	return &logger{
		level: lvl,
		out:   out,
		files: files,
	}, nil
}

func (l *logger) Level() Level {
	return l.level
}

func (l *logger) Log(level Level, pkg string, file string, line int, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.b.Reset()
	l.b.WriteString(time.Now().Format("2006-01-02 15:04:05"))
	l.b.WriteString(" ")
	l.b.WriteString(logLevelGlyph(level))
	l.b.WriteString(" [")
	l.b.WriteString(logLevelAbbreviation(level))
	l.b.WriteString("] ")

	l.b.WriteString(pkg)
	if len(pkg) > 0 {
		l.b.WriteString("/")
	}
	l.b.WriteString(file)
	l.b.WriteString(":")
	l.b.WriteString(strconv.Itoa(line))
	l.b.WriteString(" - ")
	l.b.WriteString(fmt.Sprintf(format, args...))
	l.b.WriteString("\n")

	msg := l.b.String()
	fmt.Fprint(l.out, msg)
	for _, w := range l.files {
		fmt.Fprint(w, msg)
	}
}

// Close closes all log files. Writing to a closed logger only writes to out.
func (l *logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for _, w := range l.files {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}

func getCallerInfo() callerInfo {
	c := callerInfo{}
	// 0: getCallerInfo, 1: logf, 2: exported helper, 3: caller
	_, file, line, ok := runtime.Caller(3)
	if ok {
		c.pkg = filepath.Base(path.Dir(file))
		filename := filepath.Base(file)
		c.filename = strings.TrimSuffix(filename, filepath.Ext(filename))
		c.line = line
	} else {
		c.pkg = "???"
		c.filename = "???"
	}

	return c
}

func logLevelAbbreviation(level Level) string {
	switch level {
	case DebugLevel:
		return "DBG"
	case InfoLevel:
		return "INF"
	case WarningLevel:
		return "WRN"
	case ErrorLevel:
		return "ERR"
	case FatalLevel:
		return "FTL"
	default:
		return ""
	}
}

func logLevelGlyph(level Level) string {
	switch level {
	case DebugLevel:
		return "\U0001f50D"
	case InfoLevel:
		return "\u2139\ufe0f"
	case WarningLevel:
		return "\u26a0\ufe0f"
	case ErrorLevel:
		return "\U0001f4a5"
	case FatalLevel:
		return "\U0001f480"
	default:
		return ""
	}
}

// ParseLevel converts a level name as accepted by the -log-level flags into a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarningLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	}

	return Level(-1), fmt.Errorf("log: unrecognized log level: %s", level)
}
