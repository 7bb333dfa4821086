package observability

import (
	"strings"

	"github.com/railzwaylabs/paygate/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the root logger. Unknown levels fall back to info.
func NewLogger(cfg config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config
	if strings.EqualFold(cfg.Log.Format, "console") {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	log, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return log.With(
		zap.String("service", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", cfg.App.Version),
	), nil
}
