package messaging

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
)

// ZapLoggerAdapter は watermill のログを zap へ流す
type ZapLoggerAdapter struct {
	logger *zap.Logger
}

// NewZapLoggerAdapter は ZapLoggerAdapter を作成する
func NewZapLoggerAdapter(logger *zap.Logger) *ZapLoggerAdapter {
	return &ZapLoggerAdapter{logger: logger.Named("watermill")}
}

var _ watermill.LoggerAdapter = (*ZapLoggerAdapter)(nil)

func (a *ZapLoggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.logger.Error(msg, append(toZapFields(fields), zap.Error(err))...)
}

func (a *ZapLoggerAdapter) Info(msg string, fields watermill.LogFields) {
	a.logger.Info(msg, toZapFields(fields)...)
}

func (a *ZapLoggerAdapter) Debug(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, toZapFields(fields)...)
}

// Trace は zap に対応するレベルがないため Debug として出力する
func (a *ZapLoggerAdapter) Trace(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, toZapFields(fields)...)
}

func (a *ZapLoggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &ZapLoggerAdapter{logger: a.logger.With(toZapFields(fields)...)}
}

func toZapFields(fields watermill.LogFields) []zap.Field {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return zf
}
