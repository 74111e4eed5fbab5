package domain

import (
	"context"
	"time"
)

// KeyValueStore описывает внешнее байтовое хранилище с доступом по строковому ключу.
type KeyValueStore interface {
	// Get возвращает значение или ErrKeyNotFound, если ключа нет.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set перезаписывает значение по ключу.
	Set(ctx context.Context, key string, value []byte) error
}

// Pinger реализуют хранилища, умеющие проверять доступность.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EventPublisher публикует события корзины во внешний поток.
type EventPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным по ID.
	Publish(ctx context.Context, event CartEvent) error
}

// CartEventType задаёт тип изменения корзины.
type CartEventType string

const (
	CartEventItemAdded       CartEventType = "item_added"
	CartEventItemIncremented CartEventType = "item_incremented"
	CartEventItemDecremented CartEventType = "item_decremented"
	CartEventItemRemoved     CartEventType = "item_removed"
	CartEventReplayed        CartEventType = "replayed"
)

// CartEvent описывает одну мутацию корзины после фиксации в памяти.
type CartEvent struct {
	ID         string        `json:"id"`
	Type       CartEventType `json:"type"`
	ProductID  string        `json:"product_id,omitempty"`
	Quantity   int           `json:"quantity"`
	TotalItems int           `json:"total_items"`
	Subtotal   string        `json:"subtotal"`
	OccurredAt time.Time     `json:"occurred_at"`
}
