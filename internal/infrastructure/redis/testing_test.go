package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-event-ticket-booking/internal/config"
)

// newTestClient はローカルの Redis に接続する（未起動ならテストをスキップ）
func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	client, err := NewClient(context.Background(), &config.RedisConfig{Host: "localhost", Port: "6379", DB: 15})
	if err != nil {
		t.Skip("Redis not available")
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		client.FlushDB(ctx)
		client.Close()
	})
	return client
}
