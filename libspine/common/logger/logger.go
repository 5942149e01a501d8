// Package logger provides the named, leveled loggers used across the server.
// Loggers are obtained with Get and share one output and format.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	dlog "github.com/lni/dragonboat/v4/logger"
)

// Names of the loggers the server creates
var Names = []string{"server", "engine", "transport", "handler", "commands"}

var (
	outMu sync.Mutex
	out   io.Writer = os.Stdout
)

type spineLogger struct {
	name   string
	level  dlog.LogLevel
	logger *log.Logger
}

func (l *spineLogger) SetLevel(level dlog.LogLevel) {
	l.level = level
}

func (l *spineLogger) Debugf(format string, args ...interface{}) {
	if l.level >= dlog.DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *spineLogger) Infof(format string, args ...interface{}) {
	if l.level >= dlog.INFO {
		l.log("INFO", format, args...)
	}
}

func (l *spineLogger) Warningf(format string, args ...interface{}) {
	if l.level >= dlog.WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *spineLogger) Errorf(format string, args ...interface{}) {
	if l.level >= dlog.ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *spineLogger) Panicf(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}

func (l *spineLogger) log(levelStr string, format string, args ...interface{}) {
	l.logger.Printf("%-5s | %-10s | %s", levelStr, l.name, fmt.Sprintf(format, args...))
}

type syncWriter struct{}

func (syncWriter) Write(p []byte) (int, error) {
	outMu.Lock()
	defer outMu.Unlock()
	return out.Write(p)
}

// CreateLogger is the factory handed to dragonboat's logger registry
func CreateLogger(pkgName string) dlog.ILogger {
	return &spineLogger{
		name:   pkgName,
		level:  dlog.INFO,
		logger: log.New(syncWriter{}, "", log.Ldate|log.Ltime),
	}
}

func init() {
	dlog.SetLoggerFactory(CreateLogger)
}

// Get returns the logger registered under name
func Get(name string) dlog.ILogger {
	return dlog.GetLogger(name)
}

// SetOutput redirects every logger
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	out = w
}

// ParseLevel converts a level name to a log level
func ParseLevel(level string) (dlog.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return dlog.DEBUG, nil
	case "info", "":
		return dlog.INFO, nil
	case "warning", "warn":
		return dlog.WARNING, nil
	case "error":
		return dlog.ERROR, nil
	}
	return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", level)
}

// Init sets the level of every server logger
func Init(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	for _, name := range Names {
		Get(name).SetLevel(lvl)
	}
	return nil
}
