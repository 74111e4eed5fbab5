package kafka

import (
	"time"

	"github.com/Leonardofps/gomarketplace/internal/domain"
)

// TopicCartEvents — поток активности корзины. Сервис только пишет в него.
const TopicCartEvents = "gomarketplace.cart.events"

// Заголовки сообщений.
const (
	HeaderEventType     = "x-event-type"
	HeaderEventID       = "x-event-id"
	HeaderSchemaVersion = "x-schema-version"
)

// CartEventSchemaVersion увеличивается при несовместимом изменении CartEventMessage.
const CartEventSchemaVersion = "1"

// CartEventMessage — JSON-представление события корзины в Kafka.
type CartEventMessage struct {
	ID         string    `json:"id"`
	EventType  string    `json:"event_type"`
	ProductID  string    `json:"product_id,omitempty"`
	Quantity   int       `json:"quantity"`
	TotalItems int       `json:"total_items"`
	Subtotal   string    `json:"subtotal"`
	OccurredAt time.Time `json:"occurred_at"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewCartEventMessage переводит доменное событие в сообщение.
func NewCartEventMessage(event domain.CartEvent) *CartEventMessage {
	return &CartEventMessage{
		ID:         event.ID,
		EventType:  string(event.Type),
		ProductID:  event.ProductID,
		Quantity:   event.Quantity,
		TotalItems: event.TotalItems,
		Subtotal:   event.Subtotal,
		OccurredAt: event.OccurredAt.UTC(),
		Timestamp:  time.Now().UTC(),
	}
}
