/*
Package logger - GORM to Zap logging adapter.
*/
package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockroom/infrastructure/persistence"

	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

type GormLoggerConfig struct {
	SlowThreshold             time.Duration
	IgnoreRecordNotFoundError bool
	AddCaller                 bool
}

func DefaultGormLoggerConfig() *GormLoggerConfig {
	return &GormLoggerConfig{
		SlowThreshold:             200 * time.Millisecond,
		IgnoreRecordNotFoundError: false,
		AddCaller:                 true,
	}
}

// GormLoggerAdapter routes GORM's logger interface onto the shared zap
// logger, tagging entries with the correlation id carried in the context.
type GormLoggerAdapter struct {
	logLevel logger.LogLevel
	logger   *zap.Logger
	config   *GormLoggerConfig
}

func NewGormLoggerAdapter(logLevel logger.LogLevel) *GormLoggerAdapter {
	return NewGormLoggerAdapterWithConfig(logLevel, DefaultGormLoggerConfig())
}

func NewGormLoggerAdapterWithConfig(logLevel logger.LogLevel, config *GormLoggerConfig) *GormLoggerAdapter {
	if config == nil {
		config = DefaultGormLoggerConfig()
	}
	base := log
	if base == nil {
		base = zap.NewNop()
	}
	return &GormLoggerAdapter{logLevel: logLevel, logger: base, config: config}
}

func (l *GormLoggerAdapter) LogMode(logLevel logger.LogLevel) logger.Interface {
	return &GormLoggerAdapter{logLevel: logLevel, logger: l.logger, config: l.config}
}

func (l *GormLoggerAdapter) forContext(ctx context.Context) *zap.Logger {
	zl := l.logger
	if zl == nil {
		zl = zap.NewNop()
	}
	if correlationID := persistence.CorrelationIDFromContext(ctx); correlationID != "" {
		zl = zl.With(zap.String("correlation_id", correlationID))
	}
	if l.config.AddCaller {
		zl = zl.WithOptions(zap.AddCaller())
	}
	return zl
}

func (l *GormLoggerAdapter) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.logLevel >= logger.Info {
		l.forContext(ctx).Info(fmt.Sprintf(msg, args...))
	}
}

func (l *GormLoggerAdapter) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.forContext(ctx).Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *GormLoggerAdapter) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.logLevel >= logger.Error {
		l.forContext(ctx).Error(fmt.Sprintf(msg, args...))
	}
}

// Trace logs finished statements: failures at error level, statements over
// the slow threshold at warn, the rest at info.
func (l *GormLoggerAdapter) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}

	sql, rows := fc()
	elapsed := time.Since(begin)
	fields := []zap.Field{
		zap.String("sql", sql),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
	}
	zl := l.forContext(ctx)

	switch {
	case err != nil && l.logLevel >= logger.Error:
		if errors.Is(err, logger.ErrRecordNotFound) && l.config.IgnoreRecordNotFoundError {
			return
		}
		zl.Error("Database operation failed", append(fields, zap.Error(err))...)
	case l.config.SlowThreshold != 0 && elapsed > l.config.SlowThreshold && l.logLevel >= logger.Warn:
		zl.Warn("Slow SQL query", append(fields, zap.String("type", "slow_query"))...)
	case l.logLevel >= logger.Info:
		zl.Info("SQL query executed", fields...)
	}
}
