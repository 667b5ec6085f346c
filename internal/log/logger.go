// SPDX-License-Identifier: MIT
//
// Package log is a small leveled logger shared by every package. The level is
// global and stored atomically so it can be changed from the config loader
// while the pipeline is running.
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel is the severity of a message.
type LogLevel uint32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l LogLevel) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

// ParseLevel matches a level name case-insensitively ("warning" is accepted
// for WARN). Unknown names yield LevelInfo and false.
func ParseLevel(name string) (LogLevel, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "WARNING" {
		return LevelWarn, true
	}
	for i, n := range levelNames {
		if n == name {
			return LogLevel(i), true
		}
	}
	return LevelInfo, false
}

var (
	currentLevel atomic.Uint32
	std          = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)
	root         = &Logger{}
)

func init() {
	SetLevel(LevelInfo)
}

func SetLevel(level LogLevel) { currentLevel.Store(uint32(level)) }

func GetLevel() LogLevel { return LogLevel(currentLevel.Load()) }

// SetOutput redirects every logger, mainly for tests.
func SetOutput(w io.Writer) { std.SetOutput(w) }

// Enabled reports whether messages at level are currently written.
func Enabled(level LogLevel) bool { return level >= GetLevel() }

// Logger prefixes every message with a component name.
type Logger struct {
	component string
}

// With returns a Logger tagging its messages with component.
func With(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) logf(level LogLevel, format string, v []any) {
	if !Enabled(level) {
		return
	}
	msg := fmt.Sprintf(format, v...)
	if l.component != "" {
		msg = l.component + ": " + msg
	}
	// Width of the longest level name keeps messages aligned.
	std.Printf("%-7s %s", "["+level.String()+"]", msg)
}

func (l *Logger) Debugf(format string, v ...any) { l.logf(LevelDebug, format, v) }
func (l *Logger) Infof(format string, v ...any)  { l.logf(LevelInfo, format, v) }
func (l *Logger) Warnf(format string, v ...any)  { l.logf(LevelWarn, format, v) }
func (l *Logger) Errorf(format string, v ...any) { l.logf(LevelError, format, v) }

func Debugf(format string, v ...any) { root.logf(LevelDebug, format, v) }
func Infof(format string, v ...any)  { root.logf(LevelInfo, format, v) }
func Warnf(format string, v ...any)  { root.logf(LevelWarn, format, v) }
func Errorf(format string, v ...any) { root.logf(LevelError, format, v) }

// Fatalf logs regardless of level and exits with status 1.
func Fatalf(format string, v ...any) {
	std.Fatalf("[%s] %s", LevelFatal, fmt.Sprintf(format, v...))
}
