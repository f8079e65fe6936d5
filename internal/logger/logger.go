// Package logger builds the zap logger shared by every component.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mrlokans/moneta/internal/config"
)

// New creates a root logger from the log configuration.
// Components derive their own with Named.
func New(cfg config.Log) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zcfg zap.Config
	if cfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zcfg.Build()
}

// Must is New that falls back to a no-op logger on invalid configuration.
func Must(cfg config.Log) *zap.Logger {
	log, err := New(cfg)
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// KV adapts a zap logger to loggers taking alternating key/value pairs,
// like the task queue's.
type KV struct {
	log *zap.SugaredLogger
}

func NewKV(log *zap.Logger) *KV {
	return &KV{log: log.Sugar()}
}

func (l *KV) Info(message string, params ...any) {
	l.log.Infow(message, params...)
}

func (l *KV) Error(message string, params ...any) {
	l.log.Errorw(message, params...)
}
