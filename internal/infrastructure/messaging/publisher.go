package messaging

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
)

// NewRedisPublisher は Redis Streams へのパブリッシャーを作成する
func NewRedisPublisher(client *redis.Client, logger watermill.LoggerAdapter) (message.Publisher, error) {
	publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: client,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("パブリッシャー作成に失敗: %w", err)
	}
	return publisher, nil
}

// NewEventBus は予約イベントを topic に配信するイベントバスを作成する
// 全イベントを同じストリームに流し、種類はメッセージの name メタデータで区別する
func NewEventBus(pub message.Publisher, topic string, logger watermill.LoggerAdapter) (*cqrs.EventBus, error) {
	return cqrs.NewEventBusWithConfig(pub, cqrs.EventBusConfig{
		GeneratePublishTopic: func(params cqrs.GenerateEventPublishTopicParams) (string, error) {
			return topic, nil
		},
		Marshaler: cqrs.JSONMarshaler{
			GenerateName: cqrs.StructName,
		},
		Logger: logger,
	})
}
