package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	gormlogger "gorm.io/gorm/logger"
)

// CronLogger направляет логи robfig/cron в zerolog
type CronLogger struct{}

var _ cron.Logger = CronLogger{}

func (CronLogger) Info(msg string, keysAndValues ...interface{}) {
	Debug().Fields(keysAndValues).Str("component", "cron").Msg(msg)
}

func (CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	Error().Err(err).Fields(keysAndValues).Str("component", "cron").Msg(msg)
}

// GormLogger направляет SQL логи gorm в zerolog
type GormLogger struct {
	SlowThreshold time.Duration
	Level         gormlogger.LogLevel
}

var _ gormlogger.Interface = (*GormLogger)(nil)

func NewGormLogger(level string) *GormLogger {
	gl := &GormLogger{SlowThreshold: 500 * time.Millisecond, Level: gormlogger.Warn}
	if level == "debug" {
		gl.Level = gormlogger.Info
	}
	return gl
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.Level = level
	return &clone
}

func (l *GormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.Level >= gormlogger.Info {
		Info().Str("component", "gorm").Msg(fmt.Sprintf(msg, args...))
	}
}

func (l *GormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.Level >= gormlogger.Warn {
		Warn().Str("component", "gorm").Msg(fmt.Sprintf(msg, args...))
	}
}

func (l *GormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.Level >= gormlogger.Error {
		Error().Str("component", "gorm").Msg(fmt.Sprintf(msg, args...))
	}
}

func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.Level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound) && l.Level >= gormlogger.Error:
		sql, rows := fc()
		Error().Err(err).Str("component", "gorm").Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("query failed")
	case l.SlowThreshold > 0 && elapsed > l.SlowThreshold && l.Level >= gormlogger.Warn:
		sql, rows := fc()
		Warn().Str("component", "gorm").Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("slow query")
	case l.Level >= gormlogger.Info:
		sql, rows := fc()
		Debug().Str("component", "gorm").Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("query")
	}
}
