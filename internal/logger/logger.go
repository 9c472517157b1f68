package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// global is the shared logger instance used throughout the application.
	//nolint:gochecknoglobals // Logger is used all over the project, so it's okay.
	global *zap.SugaredLogger
	// defaultLevel is the minimum log level for messages to be processed.
	//nolint:gochecknoglobals // If the logging level is not set, the application will have no logs.
	defaultLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
)

// errUnknownLevel is returned when a level name cannot be parsed.
var errUnknownLevel = errors.New("unknown log level")

const (
	// defaultMaxSizeMB is the size at which the log file is rotated.
	defaultMaxSizeMB = 10
	// defaultMaxBackups is the number of rotated log files kept on disk.
	defaultMaxBackups = 5
	// defaultMaxAgeDays is how long rotated log files are kept.
	defaultMaxAgeDays = 30
)

func init() { //nolint:gochecknoinits // If the logging level is not set, the application will have no logs.
	SetLogger(New(defaultLevel))
}

// Options configures the global logger.
type Options struct {
	// Level is the minimum level name ("debug", "info", ...). Empty keeps the current level.
	Level string
	// File is an optional path of a rotating log file written next to stdout.
	File string
	// MaxSizeMB is the file size that triggers rotation.
	MaxSizeMB int
	// MaxBackups is the number of rotated files to keep.
	MaxBackups int
	// MaxAgeDays is the retention period for rotated files.
	MaxAgeDays int
}

// New creates a new instance of *zap.SugaredLogger writing to stdout in console format.
// If the logging level is not provided, the default level will be used.
func New(level zapcore.LevelEnabler, options ...zap.Option) *zap.SugaredLogger {
	if level == nil {
		level = defaultLevel
	}

	core := zapcore.NewCore(
		newConsoleEncoder(zapcore.CapitalColorLevelEncoder),
		zapcore.AddSync(os.Stdout),
		level,
	)

	return zap.New(core, options...).Sugar()
}

// Configure applies the level and, when a file is set, tees output into a
// rotating log file. The returned closer releases the file.
func Configure(opts Options) (io.Closer, error) {
	if opts.Level != "" {
		level, ok := ParseLogLevel(opts.Level)
		if !ok {
			return nil, fmt.Errorf("%w: %s", errUnknownLevel, opts.Level)
		}

		SetLevel(level)
	}

	if strings.TrimSpace(opts.File) == "" {
		SetLogger(New(defaultLevel))

		return nopCloser{}, nil
	}

	fileLogger := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    valueOrDefault(opts.MaxSizeMB, defaultMaxSizeMB),
		MaxBackups: valueOrDefault(opts.MaxBackups, defaultMaxBackups),
		MaxAge:     valueOrDefault(opts.MaxAgeDays, defaultMaxAgeDays),
		Compress:   true,
	}

	core := zapcore.NewTee(
		zapcore.NewCore(
			newConsoleEncoder(zapcore.CapitalColorLevelEncoder),
			zapcore.AddSync(os.Stdout),
			defaultLevel,
		),
		zapcore.NewCore(
			// No color escapes in files.
			newConsoleEncoder(zapcore.CapitalLevelEncoder),
			zapcore.AddSync(fileLogger),
			defaultLevel,
		),
	)

	SetLogger(zap.New(core).Sugar())

	return fileLogger, nil
}

// newConsoleEncoder builds the console encoder shared by stdout and file output.
func newConsoleEncoder(levelEncoder zapcore.LevelEncoder) zapcore.Encoder {
	//nolint:exhaustruct // I'm okay with default encoder configuration values.
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		MessageKey:       "message",
		LevelKey:         "level",
		NameKey:          "logger",
		CallerKey:        "caller",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      levelEncoder,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: ", ",
	})
}

// nopCloser is returned by Configure when no file is opened.
type nopCloser struct{}

// Close does nothing.
func (nopCloser) Close() error {
	return nil
}

func valueOrDefault(value, fallback int) int {
	if value > 0 {
		return value
	}

	return fallback
}

// ParseLogLevel converts string input to zap log level.
func ParseLogLevel(s string) (zapcore.Level, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "debug":
		return zapcore.DebugLevel, true
	case "info":
		return zapcore.InfoLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	default:
		return zapcore.InfoLevel, false
	}
}

// Level returns the current logging level of the global logger.
func Level() zapcore.Level {
	return defaultLevel.Level()
}

// Logger returns the global logger.
func Logger() *zap.SugaredLogger {
	return global
}

// SetLogger sets the global logger.
// This function is not thread-safe.
func SetLogger(l *zap.SugaredLogger) {
	global = l
}

// SetLevel sets the log level for the global logger.
func SetLevel(level zapcore.Level) {
	//nolint: errcheck // No need to check the error here.
	defer global.Sync()

	defaultLevel.SetLevel(level)
}

// DebugKV writes a message and key-value pairs
// at the debug level using the logger from the context.
func DebugKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Debugw(message, kvs...)
}

// Info writes an information level message using the logger from the context.
func Info(ctx context.Context, args ...any) {
	FromContext(ctx).Info(args...)
}

// InfoKV writes a message and key-value pairs
// at the information level using the logger from the context.
func InfoKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Infow(message, kvs...)
}

// WarnKV writes a message and key-value pairs
// at the warning level using the logger from the context.
func WarnKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Warnw(message, kvs...)
}

// ErrorKV writes a message and key-value pairs
// at the error level using the logger from the context.
func ErrorKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Errorw(message, kvs...)
}
