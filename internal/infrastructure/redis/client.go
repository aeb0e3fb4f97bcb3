package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-event-ticket-booking/internal/config"
)

const defaultDialTimeout = 3 * time.Second

// NewClient は設定からRedisクライアントを作り、疎通を確認して返す
// 応答がなければクライアントを閉じてエラーを返す（呼び出し側はRedisなしで動かせる）
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := Ping(pingCtx, client); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Ping はヘルスチェック用にRedisへの疎通を確認する
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redisが応答しません: %w", err)
	}
	return nil
}
