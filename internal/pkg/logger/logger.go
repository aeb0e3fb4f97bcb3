// Package logger はプロセス全体で使う zap ロガーを保持する
//
// リクエスト処理中は FromContext で request_id 付きのロガーを取り出す。
// バックグラウンド処理はパッケージ関数（Info, Warn など）を使う。
package logger

import (
	"context"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "ticket-booking"

var current atomic.Pointer[zap.Logger]

func init() {
	current.Store(NewLogger(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL")))
}

// Init は設定値からパッケージロガーを作り直し、service フィールドを付ける
func Init(env, level string) *zap.Logger {
	l := NewLogger(env, level).With(zap.String("service", serviceName))
	current.Store(l)
	return l
}

// NewLogger は production なら JSON、それ以外は色付きのコンソール出力にする
// level が解釈できなければ env ごとの既定レベル
func NewLogger(env, level string) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if lvl, err := zapcore.ParseLevel(level); level != "" && err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

type ctxKey struct{}

// WithContext は l を ctx に載せる
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext は ctx に載ったロガーを返す。無ければパッケージロガー
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return Get()
}

func Get() *zap.Logger { return current.Load() }

func Set(l *zap.Logger) { current.Store(l) }

func With(fields ...zap.Field) *zap.Logger { return Get().With(fields...) }

func Debug(msg string, fields ...zap.Field) { Get().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field) { Get().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field) { Get().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Get().Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { Get().Fatal(msg, fields...) }

func Sync() error { return Get().Sync() }
