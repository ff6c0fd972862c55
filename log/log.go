// Package log supplies leveled logging for gomesh packages. Applications
// can integrate with their own logging by supplying an object that
// implements the Logger interface, else log lines are written to
// os.Stdout at "info" level.
package log

import "io"
import "os"
import "fmt"
import "sync"
import "time"
import "strings"

import "github.com/bnclabs/gomesh/lib"

func init() {
	SetLogger(nil, Defaultsettings())
}

// Logger interface for gomesh logging, applications can supply a
// logger object implementing this interface or gomesh will fall back
// to the defaultLogger{}.
type Logger interface {
	SetLogLevel(string)
	Fatalf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Verbosef(format string, v ...interface{})
	Debugf(format string, v ...interface{})
	Tracef(format string, v ...interface{})
	Printlf(loglevel LogLevel, format string, v ...interface{})
}

// LogLevel defines log level.
type LogLevel int

const (
	logLevelIgnore LogLevel = iota + 1
	logLevelFatal
	logLevelError
	logLevelWarn
	logLevelInfo
	logLevelVerbose
	logLevelDebug
	logLevelTrace
)

var log Logger

// Defaultsettings for the default logger.
//
// "log.level" (string, default: "info")
//		One of ignore, fatal, error, warn, info, verbose, debug, trace.
//
// "log.file" (string, default: "")
//		Append log lines to file, empty string logs to os.Stdout.
func Defaultsettings() lib.Settings {
	return lib.Settings{"log.level": "info", "log.file": ""}
}

// SetLogger to integrate gomesh logging with application logging.
// If logger is nil, a default logger is configured from `setts`.
func SetLogger(logger Logger, setts lib.Settings) Logger {
	if logger != nil {
		log = logger
		return log
	}

	setts = make(lib.Settings).Mixin(Defaultsettings(), setts)
	level := string2logLevel(setts.String("log.level"))
	var output io.Writer = os.Stdout
	if logfile := setts.String("log.file"); logfile != "" {
		flags := os.O_RDWR | os.O_APPEND | os.O_CREATE
		fd, err := os.OpenFile(logfile, flags, 0660)
		if err != nil {
			panic(err)
		}
		output = fd
	}
	log = &defaultLogger{level: level, output: output}
	return log
}

// defaultLogger with default log-file as os.Stdout and,
// default log-level as logLevelInfo.
type defaultLogger struct {
	mu     sync.Mutex
	level  LogLevel
	output io.Writer
}

func (l *defaultLogger) SetLogLevel(level string) {
	l.mu.Lock()
	l.level = string2logLevel(level)
	l.mu.Unlock()
}

func (l *defaultLogger) Fatalf(format string, v ...interface{}) {
	l.Printlf(logLevelFatal, format, v...)
}

func (l *defaultLogger) Errorf(format string, v ...interface{}) {
	l.Printlf(logLevelError, format, v...)
}

func (l *defaultLogger) Warnf(format string, v ...interface{}) {
	l.Printlf(logLevelWarn, format, v...)
}

func (l *defaultLogger) Infof(format string, v ...interface{}) {
	l.Printlf(logLevelInfo, format, v...)
}

func (l *defaultLogger) Verbosef(format string, v ...interface{}) {
	l.Printlf(logLevelVerbose, format, v...)
}

func (l *defaultLogger) Debugf(format string, v ...interface{}) {
	l.Printlf(logLevelDebug, format, v...)
}

func (l *defaultLogger) Tracef(format string, v ...interface{}) {
	l.Printlf(logLevelTrace, format, v...)
}

func (l *defaultLogger) Printlf(level LogLevel, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level > l.level {
		return
	}
	ts := time.Now().Format("2006-01-02T15:04:05.999Z-07:00")
	line := fmt.Sprintf(ts+" ["+level.String()+"] "+format, v...)
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	io.WriteString(l.output, line)
}

func (l LogLevel) String() string {
	switch l {
	case logLevelIgnore:
		return "Ignor"
	case logLevelFatal:
		return "Fatal"
	case logLevelError:
		return "Error"
	case logLevelWarn:
		return "Warng"
	case logLevelInfo:
		return "Infom"
	case logLevelVerbose:
		return "Verbs"
	case logLevelDebug:
		return "Debug"
	case logLevelTrace:
		return "Trace"
	}
	panic("unexpected log level") // should never reach here
}

func string2logLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "ignore":
		return logLevelIgnore
	case "fatal":
		return logLevelFatal
	case "error":
		return logLevelError
	case "warn":
		return logLevelWarn
	case "info":
		return logLevelInfo
	case "verbose":
		return logLevelVerbose
	case "debug":
		return logLevelDebug
	case "trace":
		return logLevelTrace
	}
	panic(fmt.Errorf("unexpected log level %q", s))
}

// Fatalf log at fatal level using the configured logger.
func Fatalf(format string, v ...interface{}) {
	log.Printlf(logLevelFatal, format, v...)
}

// Errorf log at error level using the configured logger.
func Errorf(format string, v ...interface{}) {
	log.Printlf(logLevelError, format, v...)
}

// Warnf log at warn level using the configured logger.
func Warnf(format string, v ...interface{}) {
	log.Printlf(logLevelWarn, format, v...)
}

// Infof log at info level using the configured logger.
func Infof(format string, v ...interface{}) {
	log.Printlf(logLevelInfo, format, v...)
}

// Verbosef log at verbose level using the configured logger.
func Verbosef(format string, v ...interface{}) {
	log.Printlf(logLevelVerbose, format, v...)
}

// Debugf log at debug level using the configured logger.
func Debugf(format string, v ...interface{}) {
	log.Printlf(logLevelDebug, format, v...)
}

// Tracef log at trace level using the configured logger.
func Tracef(format string, v ...interface{}) {
	log.Printlf(logLevelTrace, format, v...)
}
