// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

// Package logger provides logging wrappers for the catalog cache.
//
// These wrappers allow us to standardize logging while still using a
// third-party logging package.
//
// This package is currently implemented on top of the sirupsen/logrus
// package:
//   https://github.com/sirupsen/logrus
//
// Trace logging covers the cache's internal decisions (slot recomputes,
// invalidation dispatch, identity-cache evictions) and is disabled unless
// enabled via Up().
package logger

import (
	"io"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Level names accepted by Up().
const (
	LevelError = "error"
	LevelWarn  = "warn"
	LevelInfo  = "info"
	LevelDebug = "debug"
)

var (
	globalsLock  sync.Mutex
	logger       *log.Logger
	traceEnabled bool
)

func init() {
	logger = log.New()
	logger.SetFormatter(&log.TextFormatter{DisableColors: true})
	logger.SetOutput(os.Stderr)
	logger.SetLevel(log.InfoLevel)
}

// Up (re)configures the package from the supplied level name and trace
// flag. It may be called any number of times; the most recent call wins.
func Up(levelName string, enableTrace bool) (err error) {
	var (
		level log.Level
	)

	globalsLock.Lock()
	defer globalsLock.Unlock()

	switch levelName {
	case LevelError:
		level = log.ErrorLevel
	case LevelWarn:
		level = log.WarnLevel
	case LevelInfo:
		level = log.InfoLevel
	case LevelDebug:
		level = log.DebugLevel
	default:
		level = log.InfoLevel
	}

	logger.SetLevel(level)
	traceEnabled = enableTrace

	err = nil
	return
}

// Down resets the package to its defaults.
func Down() (err error) {
	globalsLock.Lock()
	defer globalsLock.Unlock()

	logger.SetLevel(log.InfoLevel)
	logger.SetOutput(os.Stderr)
	traceEnabled = false

	err = nil
	return
}

// AddLogTarget adds another target for log messages to be written to.
// writer is called once for each log message. Useful for test cases.
func AddLogTarget(writer io.Writer) {
	globalsLock.Lock()
	defer globalsLock.Unlock()

	logger.SetOutput(io.MultiWriter(os.Stderr, writer))
}

// TraceEnabled reports whether Tracef calls are currently emitted.
func TraceEnabled() (enabled bool) {
	globalsLock.Lock()
	enabled = traceEnabled
	globalsLock.Unlock()
	return
}

// Tracef logs a success-path operational trace entry, if tracing is
// enabled. Traces are emitted at Info level so they survive level
// filtering once turned on.
func Tracef(format string, args ...interface{}) {
	if !TraceEnabled() {
		return
	}
	logger.Infof(format, args...)
}

// Debugf logs at debug level.
func Debugf(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

// Infof logs at info level.
func Infof(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

// Warnf logs at warning level.
func Warnf(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

// Errorf logs at error level.
func Errorf(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

// ErrorfWithError logs the formatted message followed by the error detail.
func ErrorfWithError(err error, format string, args ...interface{}) {
	logger.WithField("error", err).Errorf(format, args...)
}

// PanicfWithError logs the formatted message plus error detail and then
// panics with the log message. Used for fatal contract violations, such as
// a representative object constructed outside the registry choke point.
func PanicfWithError(err error, format string, args ...interface{}) {
	logger.WithField("error", err).Panicf(format, args...)
}

// LogTarget captures the most recent n lines of log into an array. Useful
// for writing test cases.
type LogTarget struct {
	sync.Mutex
	LogEntries   []string // most recent log entry is [0]
	TotalEntries int      // count of all entries seen
}

// Init sets up a LogTarget to hold up to nEntry log entries.
func (target *LogTarget) Init(nEntry int) {
	target.LogEntries = make([]string, nEntry)
	target.TotalEntries = 0
}

// Write is called by the logger for each log entry.
func (target *LogTarget) Write(p []byte) (n int, err error) {
	target.Lock()
	defer target.Unlock()

	copy(target.LogEntries[1:], target.LogEntries)
	target.LogEntries[0] = string(p)
	target.TotalEntries++

	n = len(p)
	err = nil
	return
}
