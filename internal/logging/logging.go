package logging

import (
	"fmt"
	"io"
	"log/syslog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	lsyslog "github.com/sirupsen/logrus/hooks/syslog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Output destinations accepted by Configure
const (
	OutputStderr = "stderr"
	OutputStdout = "stdout"
	OutputSyslog = "syslog"
)

// Options configures the package logger
type Options struct {
	Level  string
	Output string
	// File enables a rotated log file in addition to Output
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
}

var logger = logrus.New()

func init() {
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
}

// Configure applies level, output and optional file rotation
func Configure(opts Options) error {
	if opts.Level != "" {
		if err := SetLevelString(opts.Level); err != nil {
			return err
		}
	}

	var out io.Writer
	switch strings.ToLower(opts.Output) {
	case "", OutputStderr:
		out = os.Stderr
	case OutputStdout:
		out = os.Stdout
	case OutputSyslog:
		hook, err := lsyslog.NewSyslogHook("", "", syslog.LOG_INFO|syslog.LOG_DAEMON, "wgtunnel")
		if err != nil {
			return fmt.Errorf("failed to connect to syslog: %w", err)
		}
		logger.AddHook(hook)
		out = io.Discard
	default:
		return fmt.Errorf("unknown log output %q (want stderr, stdout or syslog)", opts.Output)
	}

	if opts.File != "" {
		w, err := rotatingFile(opts.File, opts.MaxSize, opts.MaxBackups, opts.MaxAge)
		if err != nil {
			return err
		}
		out = io.MultiWriter(out, w)
	}
	logger.SetOutput(out)
	return nil
}

func rotatingFile(path string, maxSize, maxBackups, maxAge int) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,    // megabytes
		MaxBackups: maxBackups, // number of backups
		MaxAge:     maxAge,     // days
		Compress:   true,
	}, nil
}

// SetLevelString sets the level from its name (debug, info, warn, error)
func SetLevelString(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(lvl)
	return nil
}

// SetOutput sets the log output
func SetOutput(output io.Writer) {
	logger.SetOutput(output)
}

// SetFormatter sets the log formatter
func SetFormatter(formatter logrus.Formatter) {
	logger.SetFormatter(formatter)
}

// Logger exposes the underlying logger for tests and hooks
func Logger() *logrus.Logger {
	return logger
}

// WithFields creates a new log entry with fields
func WithFields(fields logrus.Fields) *logrus.Entry {
	return logger.WithFields(fields)
}

// WithTunnel creates an entry tagged with the tunnel name
func WithTunnel(name string) *logrus.Entry {
	return logger.WithField("tunnel", name)
}

// Debugf logs a debug message
func Debugf(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

// Infof logs an info message
func Infof(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

// Warnf logs a warning message
func Warnf(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

// Errorf logs an error message
func Errorf(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

// InfoWithFields logs an info message with fields
func InfoWithFields(fields logrus.Fields, format string, args ...interface{}) {
	logger.WithFields(fields).Infof(format, args...)
}

// WarnWithFields logs a warning message with fields
func WarnWithFields(fields logrus.Fields, format string, args ...interface{}) {
	logger.WithFields(fields).Warnf(format, args...)
}
