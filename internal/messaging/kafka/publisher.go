package kafka

import (
	"context"
	"fmt"

	"github.com/Leonardofps/gomarketplace/internal/domain"
)

// CartEventPublisher публикует события корзины после успешной записи снимка.
type CartEventPublisher struct {
	producer *Producer
	topic    string
}

// NewCartEventPublisher создаёт publisher; пустой topic заменяется на TopicCartEvents.
func NewCartEventPublisher(producer *Producer, topic string) *CartEventPublisher {
	if topic == "" {
		topic = TopicCartEvents
	}
	return &CartEventPublisher{
		producer: producer,
		topic:    topic,
	}
}

// Publish отправляет событие с ключом product id, чтобы события одного товара шли в одну partition.
// События без товара (replayed) идут с ключом-идентификатором события.
func (p *CartEventPublisher) Publish(ctx context.Context, event domain.CartEvent) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka cart event publisher is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	key := event.ProductID
	if key == "" {
		key = event.ID
	}

	return p.producer.PublishEvent(p.topic, key, NewCartEventMessage(event), map[string]string{
		HeaderEventType:     string(event.Type),
		HeaderEventID:       event.ID,
		HeaderSchemaVersion: CartEventSchemaVersion,
	})
}

var _ domain.EventPublisher = (*CartEventPublisher)(nil)
