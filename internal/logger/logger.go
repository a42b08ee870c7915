package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// fileDateLayout is the date suffix of daily log files.
	fileDateLayout = "20060102"

	// DefaultDirPermissions is used when the log directory has to be created.
	DefaultDirPermissions = 0o755

	// DefaultFilePermissions is used for newly created log files.
	DefaultFilePermissions = 0o640
)

var errToolRequired = errors.New("tool name is required for file logging")

// Config describes where and how the logger writes.
type Config struct {
	// Level is the minimum level written to every output.
	Level zapcore.Level
	// Dir is the directory for the daily log file. Empty disables file output.
	Dir string
	// Tool prefixes the log file name.
	Tool string
	// Location is the timezone used for timestamps and the file date. Defaults to UTC.
	Location *time.Location
	// Console receives the console output. Defaults to os.Stdout.
	Console io.Writer
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// New builds a sugared logger writing to the console and, when Config.Dir is set,
// appending to <Dir>/<Tool>_<YYYYMMDD>.log. The file follows the date in Config.Location.
// The returned cleanup function flushes the logger and closes the file.
func New(cfg Config) (*zap.SugaredLogger, func(), error) {
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	console := cfg.Console
	if console == nil {
		console = os.Stdout
	}

	//nolint:exhaustruct // I'm okay with default encoder configuration values.
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:          "time",
		MessageKey:       "message",
		LevelKey:         "level",
		NameKey:          "logger",
		CallerKey:        "caller",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalColorLevelEncoder,
		EncodeTime:       timeEncoderIn(location),
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: ", ",
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(console), cfg.Level),
	}

	var logFile *dailyFile

	if strings.TrimSpace(cfg.Dir) != "" {
		file, err := openDailyFile(cfg.Dir, cfg.Tool, location, now)
		if err != nil {
			return nil, nil, err
		}

		logFile = file
		cores = append(cores, buildFileCore(encoderConfig, file, cfg.Level))
	}

	base := zap.New(zapcore.NewTee(cores...))

	cleanup := func() {
		//nolint:errcheck // Sync on stdout returns EINVAL on some platforms.
		_ = base.Sync()

		if logFile != nil {
			_ = logFile.Close()
		}
	}

	return base.Sugar(), cleanup, nil
}

// FileName returns the daily log file name for the tool at the given moment.
func FileName(tool string, at time.Time) string {
	return fmt.Sprintf("%s_%s.log", tool, at.Format(fileDateLayout))
}

// buildFileCore returns a core writing to the daily log file.
// Colors are stripped from file output.
func buildFileCore(encoderConfig zapcore.EncoderConfig, file zapcore.WriteSyncer, level zapcore.Level) zapcore.Core {
	fileEncoderConfig := encoderConfig
	fileEncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	return zapcore.NewCore(zapcore.NewConsoleEncoder(fileEncoderConfig), file, level)
}

// timeEncoderIn renders entry timestamps as ISO8601 in the given location.
func timeEncoderIn(location *time.Location) zapcore.TimeEncoder {
	return func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		zapcore.ISO8601TimeEncoder(t.In(location), enc)
	}
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
	case "dpanic":
		return zapcore.DPanicLevel, true
	case "panic":
		return zapcore.PanicLevel, true
	case "fatal":
		return zapcore.FatalLevel, true
	default:
		return zapcore.InfoLevel, false
	}
}

// Debug writes a debug level message using the logger from the context.
func Debug(ctx context.Context, args ...any) {
	FromContext(ctx).Debug(args...)
}

// Debugf writes a formatted debug level message using the logger from the context.
func Debugf(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Debugf(format, args...)
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

// Infof writes a formatted information level message using the logger from the context.
func Infof(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Infof(format, args...)
}

// InfoKV writes a message and key-value pairs
// at the information level using the logger from the context.
func InfoKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Infow(message, kvs...)
}

// Warn writes a warning level message using the logger from the context.
func Warn(ctx context.Context, args ...any) {
	FromContext(ctx).Warn(args...)
}

// Warnf writes a formatted warning level message using the logger from the context.
func Warnf(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Warnf(format, args...)
}

// WarnKV writes a message and key-value pairs
// at the warning level using the logger from the context.
func WarnKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Warnw(message, kvs...)
}

// Error writes an error level message using the logger from the context.
func Error(ctx context.Context, args ...any) {
	FromContext(ctx).Error(args...)
}

// Errorf writes a formatted error level message using the logger from the context.
func Errorf(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Errorf(format, args...)
}

// ErrorKV writes a message and key-value pairs
// at the error level using the logger from the context.
func ErrorKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Errorw(message, kvs...)
}
