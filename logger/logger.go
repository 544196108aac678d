package logger

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents the severity level of a log entry
type Level int8

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

// String returns the string representation of the log level
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string onto a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return INFO
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger is a printf-style facade over a zap sugared logger.
type Logger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

// Config holds the configuration for the logger
type Config struct {
	Level  Level
	Output io.Writer
	// File, when set, receives rotated logs in addition to Output.
	File         string
	EnableCaller bool
}

// New creates a new logger with the given configuration
func New(config Config) *Logger {
	if config.Output == nil {
		config.Output = os.Stdout
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.MessageKey = "msg"
	encCfg.LevelKey = "level"

	level := zap.NewAtomicLevelAt(config.Level.zapLevel())
	sinks := []zapcore.WriteSyncer{zapcore.AddSync(config.Output)}
	if config.File != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    64,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}))
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.NewMultiWriteSyncer(sinks...), level)

	opts := []zap.Option{zap.AddCallerSkip(2)}
	if config.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}

	return &Logger{
		sugar: zap.New(core, opts...).Sugar(),
		level: level,
	}
}

// NewDefault creates a logger with default configuration
func NewDefault() *Logger {
	return New(Config{Level: INFO, Output: os.Stdout})
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(level.zapLevel())
}

func (l *Logger) log(level Level, message string, args ...interface{}) {
	switch level {
	case DEBUG:
		l.sugar.Debugf(message, args...)
	case INFO:
		l.sugar.Infof(message, args...)
	case WARN:
		l.sugar.Warnf(message, args...)
	case ERROR:
		l.sugar.Errorf(message, args...)
	case FATAL:
		l.sugar.Fatalf(message, args...)
	}
}

func (l *Logger) Debug(message string, args ...interface{}) { l.log(DEBUG, message, args...) }
func (l *Logger) Info(message string, args ...interface{})  { l.log(INFO, message, args...) }
func (l *Logger) Warn(message string, args ...interface{})  { l.log(WARN, message, args...) }
func (l *Logger) Error(message string, args ...interface{}) { l.log(ERROR, message, args...) }

// Fatal logs a fatal message and exits the program
func (l *Logger) Fatal(message string, args ...interface{}) { l.log(FATAL, message, args...) }

// WithFields returns a child logger carrying the given structured fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	kv := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return &Logger{sugar: l.sugar.With(kv...), level: l.level}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

var defaultLogger = NewDefault()

// SetDefault sets the default logger
func SetDefault(logger *Logger) {
	defaultLogger = logger
}

// Package-level helpers call log directly so they sit at the same stack
// depth as the methods and share the caller skip.
func Debug(message string, args ...interface{}) { defaultLogger.log(DEBUG, message, args...) }
func Info(message string, args ...interface{})  { defaultLogger.log(INFO, message, args...) }
func Warn(message string, args ...interface{})  { defaultLogger.log(WARN, message, args...) }
func Error(message string, args ...interface{}) { defaultLogger.log(ERROR, message, args...) }
func Fatal(message string, args ...interface{}) { defaultLogger.log(FATAL, message, args...) }

// WithFields returns a child of the default logger.
func WithFields(fields map[string]interface{}) *Logger {
	return defaultLogger.WithFields(fields)
}

func Sync() error {
	return defaultLogger.Sync()
}
