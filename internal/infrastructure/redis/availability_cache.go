package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/event"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// AvailabilityCacheInterface は予約可能枚数キャッシュを抽象化する
type AvailabilityCacheInterface interface {
	Get(ctx context.Context, eventID string) (*event.Availability, error)
	Set(ctx context.Context, a *event.Availability, ttl time.Duration) error
	Invalidate(ctx context.Context, eventID string) error
}

var _ AvailabilityCacheInterface = (*AvailabilityCache)(nil)

// AvailabilityCache はイベントの予約可能枚数をキャッシュする
// 正となる値は常にDB側にあり、ここは読み取りの負荷軽減のみに使う
type AvailabilityCache struct {
	client *redis.Client
}

// NewAvailabilityCache は新しいAvailabilityCacheインスタンスを作成する
func NewAvailabilityCache(client *redis.Client) *AvailabilityCache {
	return &AvailabilityCache{client: client}
}

type availabilityEntry struct {
	EventID          string          `json:"event_id"`
	Status           string          `json:"status"`
	TotalTickets     int             `json:"total_tickets"`
	RemainingTickets int             `json:"remaining_tickets"`
	TicketPrice      decimal.Decimal `json:"ticket_price"`
}

// Get はキャッシュから予約可能枚数を取得する
func (c *AvailabilityCache) Get(ctx context.Context, eventID string) (*event.Availability, error) {
	raw, err := c.client.Get(ctx, c.key(eventID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}

	var entry availabilityEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// 壊れたエントリはミス扱いにして作り直させる
		return nil, ErrCacheMiss
	}
	return &event.Availability{
		EventID:          entry.EventID,
		Status:           event.Status(entry.Status),
		TotalTickets:     entry.TotalTickets,
		RemainingTickets: entry.RemainingTickets,
		TicketPrice:      entry.TicketPrice,
	}, nil
}

// Set は予約可能枚数をキャッシュに保存する
func (c *AvailabilityCache) Set(ctx context.Context, a *event.Availability, ttl time.Duration) error {
	raw, err := json.Marshal(availabilityEntry{
		EventID:          a.EventID,
		Status:           string(a.Status),
		TotalTickets:     a.TotalTickets,
		RemainingTickets: a.RemainingTickets,
		TicketPrice:      a.TicketPrice,
	})
	if err != nil {
		return fmt.Errorf("キャッシュのシリアライズに失敗: %w", err)
	}
	if err := c.client.Set(ctx, c.key(a.EventID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate はイベントのキャッシュを無効化する
func (c *AvailabilityCache) Invalidate(ctx context.Context, eventID string) error {
	if err := c.client.Del(ctx, c.key(eventID)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *AvailabilityCache) key(eventID string) string {
	return fmt.Sprintf("events:availability:%s", eventID)
}
