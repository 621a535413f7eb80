// Mechanism for handling application level logging

package chunkfs

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// Format for representing the date and time of a log record as a string.
const logDateTime = "2006-01-02T15:04:05-07:00"

//===========================================================================
// Log Level Type
//===========================================================================

// LogLevel characterizes the severity of the log message.
type LogLevel int

// Severity levels of log messages.
const (
	LevelDebug LogLevel = 1 + iota
	LevelInfo
	LevelWarn
	LevelError
)

// String representations of the various log levels.
var levelNames = []string{
	"DEBUG", "INFO", "WARN", "ERROR",
}

// String representation of the log level.
func (level LogLevel) String() string {
	return levelNames[level-1]
}

// LevelFromString parses a string and returns the LogLevel, defaulting to
// LevelInfo when the string is not a level name.
func LevelFromString(level string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

//===========================================================================
// Logger wrapper for log.Logger and logging initialization methods
//===========================================================================

// Logger wraps log.Logger to write to a file on demand and to enforce a
// minimum severity for writing.
type Logger struct {
	Level  LogLevel    // The minimum severity to log
	logger *log.Logger // The wrapped logger for concurrent logging
	output io.Writer   // Handle to the open log file or writer object
}

// The package level logger used by the file system and scrubber; defaults
// to INFO on stdout until InitLogger replaces it.
var logger = &Logger{
	Level:  LevelInfo,
	logger: log.New(os.Stdout, "", 0),
	output: os.Stdout,
}

// InitLogger replaces the package logger using a configuration that
// contains the minimum log level and an optional path to a log file.
func InitLogger(config *LoggingConfig) (*Logger, error) {
	output := io.Writer(os.Stdout)
	if config.Path != "" {
		var err error
		output, err = os.OpenFile(config.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
	}

	logger = &Logger{
		Level:  LevelFromString(config.Level),
		logger: log.New(output, "", 0),
		output: output,
	}
	return logger, nil
}

// Close any open file handle held by the logger.
func (logger *Logger) Close() error {
	if closer, ok := logger.output.(io.Closer); ok && logger.output != os.Stdout {
		return closer.Close()
	}
	return nil
}

//===========================================================================
// Logging handlers
//===========================================================================

// Log a message at the given severity. The layout string and arguments
// behave as in the fmt package. The record format is
// "LEVEL [timestamp]: message".
func (logger *Logger) Log(layout string, level LogLevel, args ...interface{}) {
	if level < logger.Level {
		return
	}

	msg := fmt.Sprintf(layout, args...)
	logger.logger.Printf("%-7s [%s]: %s", level, time.Now().Format(logDateTime), msg)
}

// Debug message helper function
func (logger *Logger) Debug(msg string, args ...interface{}) {
	logger.Log(msg, LevelDebug, args...)
}

// Info message helper function
func (logger *Logger) Info(msg string, args ...interface{}) {
	logger.Log(msg, LevelInfo, args...)
}

// Warn message helper function
func (logger *Logger) Warn(msg string, args ...interface{}) {
	logger.Log(msg, LevelWarn, args...)
}

// Error message helper function
func (logger *Logger) Error(msg string, args ...interface{}) {
	logger.Log(msg, LevelError, args...)
}
