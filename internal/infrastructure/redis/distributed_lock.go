package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "lock:"

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

// トークンが一致する場合のみ削除する
var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// LockOptions はロック取得の設定
// Retries は取得を試みる総回数（1未満は1回）
type LockOptions struct {
	TTL        time.Duration
	Retries    int
	RetryDelay time.Duration
}

// Lock は取得済みのロック
type Lock interface {
	Release(ctx context.Context) error
}

// LockManagerInterface はロックの取得を抽象化する
type LockManagerInterface interface {
	Acquire(ctx context.Context, key string, opts LockOptions) (Lock, error)
}

var _ LockManagerInterface = (*LockManager)(nil)

// LockManager は SET NX と所有者トークンによる Redis ロック
// 在庫の整合性には使わず、同じ冪等性キーの同時リクエストを直列化するためだけに使う
type LockManager struct {
	client *redis.Client
}

func NewLockManager(client *redis.Client) *LockManager {
	return &LockManager{client: client}
}

// Acquire は key のロックを取得する
// 取得できない間は RetryDelay ずつ間隔を伸ばして再試行する
func (m *LockManager) Acquire(ctx context.Context, key string, opts LockOptions) (Lock, error) {
	attempts := max(opts.Retries, 1)
	l := &tokenLock{
		client: m.client,
		key:    lockKeyPrefix + key,
		token:  uuid.NewString(),
	}

	for i := 0; i < attempts; i++ {
		ok, err := m.client.SetNX(ctx, l.key, l.token, opts.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("ロック取得に失敗: %w", err)
		}
		if ok {
			return l, nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.RetryDelay * time.Duration(i+1)):
		}
	}
	return nil, ErrLockNotAcquired
}

type tokenLock struct {
	client *redis.Client
	key    string
	token  string
}

// Release は自分のトークンが残っている場合のみ削除する
// TTL 切れで他者に渡ったロックは消さない
func (l *tokenLock) Release(ctx context.Context) error {
	n, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	if n == 0 {
		return ErrLockNotOwned
	}
	return nil
}
