/*
Package logger provides the shared logging facility for the module.
*/
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"stockroom/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	log       *zap.Logger
	atomLevel zap.AtomicLevel
)

// Init builds the package logger from configuration. Console encoding is the
// development default, JSON everywhere else; file output rotates through
// lumberjack with the configured limits.
func Init(cfg *config.LogConfig, env string) error {
	atomLevel = zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	sink, err := buildSink(cfg)
	if err != nil {
		return err
	}

	core := zapcore.NewCore(buildEncoder(cfg.Format, env), sink, atomLevel)
	log = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return nil
}

func buildEncoder(format, env string) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	switch format {
	case "console":
		return zapcore.NewConsoleEncoder(encoderConfig)
	case "json":
		return zapcore.NewJSONEncoder(encoderConfig)
	default:
		if env == "dev" || env == "development" {
			return zapcore.NewConsoleEncoder(encoderConfig)
		}
		return zapcore.NewJSONEncoder(encoderConfig)
	}
}

func buildSink(cfg *config.LogConfig) (zapcore.WriteSyncer, error) {
	if cfg.Output != "file" {
		return zapcore.AddSync(os.Stdout), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    orDefault(cfg.MaxSizeMB, 10),
		MaxBackups: orDefault(cfg.MaxBackups, 5),
		MaxAge:     orDefault(cfg.MaxAgeDays, 7),
		Compress:   cfg.Compress,
	}), nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func Get() *zap.Logger { return log }

// UpdateLevel changes the log level at runtime.
func UpdateLevel(level string) {
	atomLevel.SetLevel(parseLevel(level))
}

// Sync flushes buffered entries. Errors from syncing terminal streams are
// swallowed, they only mean stdout is not a regular file.
func Sync() error {
	if log == nil {
		return nil
	}
	if err := log.Sync(); err != nil {
		errStr := err.Error()
		if !strings.Contains(errStr, "inappropriate ioctl for device") &&
			!strings.Contains(errStr, "invalid argument") &&
			!strings.Contains(errStr, "bad file descriptor") {
			return err
		}
	}
	return nil
}

func With(fields ...zap.Field) *zap.Logger {
	if log != nil {
		return log.With(fields...)
	}
	return zap.NewNop()
}

// WithCorrelationID returns a logger tagging every entry with the request
// correlation id, so result failures can be matched to their log lines.
func WithCorrelationID(correlationID string) *zap.Logger {
	if log != nil {
		return log.With(zap.String("correlation_id", correlationID))
	}
	return zap.NewNop()
}

// WithContext builds a child logger from loosely typed fields.
func WithContext(fields map[string]any) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}

	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			zapFields = append(zapFields, zap.String(k, val))
		case int:
			zapFields = append(zapFields, zap.Int(k, val))
		case int64:
			zapFields = append(zapFields, zap.Int64(k, val))
		case int32:
			zapFields = append(zapFields, zap.Int32(k, val))
		case uint:
			zapFields = append(zapFields, zap.Uint(k, val))
		case uint64:
			zapFields = append(zapFields, zap.Uint64(k, val))
		case uint32:
			zapFields = append(zapFields, zap.Uint32(k, val))
		case float64:
			zapFields = append(zapFields, zap.Float64(k, val))
		case float32:
			zapFields = append(zapFields, zap.Float32(k, val))
		case bool:
			zapFields = append(zapFields, zap.Bool(k, val))
		case error:
			zapFields = append(zapFields, zap.Error(val))
		default:
			zapFields = append(zapFields, zap.Any(k, val))
		}
	}
	return log.With(zapFields...)
}

func Debug(msg string, fields ...zap.Field) {
	if log != nil {
		log.Debug(msg, fields...)
	}
}

func Info(msg string, fields ...zap.Field) {
	if log != nil {
		log.Info(msg, fields...)
	}
}

func Warn(msg string, fields ...zap.Field) {
	if log != nil {
		log.Warn(msg, fields...)
	}
}

func Error(msg string, fields ...zap.Field) {
	if log != nil {
		log.Error(msg, fields...)
	}
}

func Fatal(msg string, fields ...zap.Field) {
	if log != nil {
		log.Fatal(msg, fields...)
	}
}
