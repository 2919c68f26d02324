package relational

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const slowQuery = 200 * time.Millisecond

// gormLogger routes GORM's messages and query traces onto zerolog: failed
// queries at error, slow ones at warn, the rest at debug when enabled.
type gormLogger struct {
	l     zerolog.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

func newGormLogger(l zerolog.Logger) gormlogger.Interface {
	return &gormLogger{l: l.With().Str("component", "gorm").Logger(), level: gormlogger.Warn, slow: slowQuery}
}

func (g *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *g
	c.level = level
	return &c
}

func (g *gormLogger) Info(_ context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Info {
		g.l.Info().Msgf(msg, args...)
	}
}

func (g *gormLogger) Warn(_ context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Warn {
		g.l.Warn().Msgf(msg, args...)
	}
}

func (g *gormLogger) Error(_ context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Error {
		g.l.Error().Msgf(msg, args...)
	}
}

func (g *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	var ev *zerolog.Event
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= gormlogger.Error:
		ev = g.l.Error().Err(err)
	case g.slow > 0 && elapsed > g.slow && g.level >= gormlogger.Warn:
		ev = g.l.Warn().Bool("slow", true)
	case g.level >= gormlogger.Info:
		ev = g.l.Debug()
	default:
		return
	}
	sql, rows := fc()
	ev.Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("query")
}
