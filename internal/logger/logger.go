// Package logger is the application's leveled logger.  It sits on top of
// gommon/log, the logger echo itself uses, so request logs and service logs
// share one format and one output.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/gommon/log"
)

var std = log.New("fixmybike")

func init() {
	std.SetHeader(`${time_rfc3339} ${level} ${prefix}`)
	std.SetLevel(log.INFO)
}

// Setup applies the level name (debug, info, warn, error) and, when file is
// not empty, tees output into that file.  It returns the opened file so the
// caller can close it on shutdown.
func Setup(level, file string) (io.Closer, error) {
	std.SetLevel(parseLevel(level))
	if file == "" {
		std.SetOutput(os.Stdout)
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	std.SetOutput(io.MultiWriter(os.Stdout, f))
	return f, nil
}

func parseLevel(s string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	}
	return log.INFO
}

// Logger exposes the underlying gommon logger so echo can share it.
func Logger() *log.Logger { return std }

// SetOutput redirects all log output.  Tests use it to silence or capture logs.
func SetOutput(w io.Writer) { std.SetOutput(w) }

func Debugf(format string, args ...any) { std.Debugf(format, args...) }

func Info(msg string) { std.Info(msg) }

func Infof(format string, args ...any) { std.Infof(format, args...) }

// Success logs a completed operation at info level.
func Success(msg string) { std.Info("ok: " + msg) }

func Warn(msg string) { std.Warn(msg) }

func Warnf(format string, args ...any) { std.Warnf(format, args...) }

// Error logs msg with err appended when present.
func Error(msg string, err error) {
	if err != nil {
		std.Error(msg + ": " + err.Error())
		return
	}
	std.Error(msg)
}

func Errorf(format string, args ...any) { std.Errorf(format, args...) }

// Fatalf logs and exits the process.
func Fatalf(format string, args ...any) { std.Fatalf(format, args...) }
