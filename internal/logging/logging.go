// Package logging builds the component loggers used across the daemon.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Writer returns the shared log destination: stderr by default, or a
// size-rotated file when path is set. Daemon components share one writer
// so rotation happens in a single place.
func Writer(path string) io.Writer {
	if path == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
}

// New creates a component logger with a bracketed prefix, e.g. "[engine] ".
func New(w io.Writer, prefix string) *log.Logger {
	return log.New(w, "["+prefix+"] ", log.LstdFlags)
}
