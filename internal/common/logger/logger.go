// Package logger provides the process-wide leveled logger used by every
// service. It is a thin wrapper over the standard library logger rather than
// a structured-logging dependency: none of the services this repo is modeled
// on reach for one either.
package logger

import (
	"fmt"
	"log"
	"os"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

type Logger struct {
	service string
	level   Level
	std     *log.Logger
}

// New creates a logger tagged with the given service name. The minimum level
// can be raised with SetLevel; it defaults to Info.
func New(service string) *Logger {
	return &Logger{
		service: service,
		level:   LevelInfo,
		std:     log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds),
	}
}

func (l *Logger) SetLevel(level Level) {
	l.level = level
}

func (l *Logger) log(level Level, tag string, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.std.Printf("[%s] %s: %s", tag, l.service, msg)
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.log(LevelDebug, "DEBUG", format, args...) }
func (l *Logger) Info(msg string)                            { l.log(LevelInfo, "INFO", "%s", msg) }
func (l *Logger) Infof(format string, args ...interface{})   { l.log(LevelInfo, "INFO", format, args...) }
func (l *Logger) Warn(msg string)                            { l.log(LevelWarn, "WARN", "%s", msg) }
func (l *Logger) Warnf(format string, args ...interface{})   { l.log(LevelWarn, "WARN", format, args...) }
func (l *Logger) Error(msg string)                           { l.log(LevelError, "ERROR", "%s", msg) }
func (l *Logger) Errorf(format string, args ...interface{})  { l.log(LevelError, "ERROR", format, args...) }

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.log(LevelError, "FATAL", format, args...)
	os.Exit(1)
}
