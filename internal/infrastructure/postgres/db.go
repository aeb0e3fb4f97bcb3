package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-booking/internal/config"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/logger"
)

// NewConnection はPostgreSQLへ接続し、プール設定を適用する
// コンテナ起動直後など接続を受け付けない間は ConnectRetries 回まで待って再試行する
func NewConnection(ctx context.Context, cfg *config.DatabaseConfig) (*sqlx.DB, error) {
	attempts := max(cfg.ConnectRetries, 1)

	var lastErr error
	for i := 0; i < attempts; i++ {
		db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
		if err == nil {
			applyPool(db, cfg)
			return db, nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}

		logger.Warn("データベースへの接続を再試行します",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("データベース接続を中断しました: %w", ctx.Err())
		case <-time.After(cfg.ConnectRetryDelay):
		}
	}
	return nil, fmt.Errorf("データベース接続に失敗しました (%d回): %w", attempts, lastErr)
}

func applyPool(db *sqlx.DB, cfg *config.DatabaseConfig) {
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}

// Ping はヘルスチェック用にデータベースへの疎通を確認する
func Ping(ctx context.Context, db *sqlx.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("データベースが応答しません: %w", err)
	}
	return nil
}
