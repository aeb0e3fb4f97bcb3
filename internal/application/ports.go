package application

import (
	"context"
)

// EventPublisher は予約イベントを配信する
// watermill の cqrs.EventBus がこのまま満たす
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}
