// SPDX-License-Identifier: MIT
package log

import (
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false // Default to Info on parse error
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Options controls where log output goes.
type Options struct {
	Level LogLevel
	File  string // Rotated JSON log file; empty disables file output.
	JSON  bool   // Use JSON instead of the console encoder on stderr.

	// NoConsole drops the stderr core, for full-screen terminal UIs.
	NoConsole bool
}

// --- Global Logger State ---

// atomicLevel is shared by every core so SetLevel applies everywhere.
var atomicLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// sugar holds the current *zap.SugaredLogger.
var sugar atomic.Pointer[zap.SugaredLogger]

func init() {
	// Console only until Setup is called with the loaded configuration.
	Setup(Options{Level: LevelInfo})
}

// Setup replaces the global logger. Console output always goes to stderr;
// when opts.File is set a rotating JSON file core is added.
func Setup(opts Options) {
	atomicLevel.SetLevel(opts.Level.zapLevel())

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05.000000")
	var consoleEncoder zapcore.Encoder = zapcore.NewConsoleEncoder(consoleCfg)

	fileCfg := zap.NewProductionEncoderConfig()
	fileCfg.TimeKey = "timestamp"
	fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	fileCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if opts.JSON {
		consoleEncoder = zapcore.NewJSONEncoder(fileCfg)
	}

	var cores []zapcore.Core
	if !opts.NoConsole {
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), atomicLevel))
	}
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // Megabytes
			MaxBackups: 5,
			MaxAge:     30, // Days
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(rotator), atomicLevel))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	sugar.Store(l.Sugar())
}

// Sync flushes buffered log entries.
func Sync() error {
	return sugar.Load().Sync()
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	atomicLevel.SetLevel(level.zapLevel())
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	switch atomicLevel.Level() {
	case zapcore.DebugLevel:
		return LevelDebug
	case zapcore.WarnLevel:
		return LevelWarn
	case zapcore.ErrorLevel:
		return LevelError
	case zapcore.FatalLevel:
		return LevelFatal
	default:
		return LevelInfo
	}
}

// --- Public Logging Functions ---

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...interface{}) {
	sugar.Load().Debugf(format, v...)
}

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...interface{}) {
	sugar.Load().Infof(format, v...)
}

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...interface{}) {
	sugar.Load().Warnf(format, v...)
}

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...interface{}) {
	sugar.Load().Errorf(format, v...)
}

// Fatalf logs a formatted fatal message and exits the application.
func Fatalf(format string, v ...interface{}) {
	sugar.Load().Fatalf(format, v...)
}

// --- Functions without formatting (convenience) ---

// Debug logs a debug message if the level is appropriate.
func Debug(v ...interface{}) {
	sugar.Load().Debug(v...)
}

// Info logs an info message if the level is appropriate.
func Info(v ...interface{}) {
	sugar.Load().Info(v...)
}

// Warn logs a warning message if the level is appropriate.
func Warn(v ...interface{}) {
	sugar.Load().Warn(v...)
}

// Error logs an error message if the level is appropriate.
func Error(v ...interface{}) {
	sugar.Load().Error(v...)
}

// Fatal logs a fatal message and exits the application.
func Fatal(v ...interface{}) {
	sugar.Load().Fatal(v...)
}
