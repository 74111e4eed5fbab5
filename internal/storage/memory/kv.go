package memory

import (
	"context"
	"sync"

	"github.com/Leonardofps/gomarketplace/internal/domain"
)

// kvStoreInMemory — простая in-memory реализация KeyValueStore.
type kvStoreInMemory struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// KVStore расширяет KeyValueStore методами, нужными тестам и локальной разработке.
type KVStore interface {
	domain.KeyValueStore
	domain.Pinger
	Delete(ctx context.Context, key string) error
	Len() int
}

// NewKVStore возвращает in-memory хранилище для локальной разработки и тестов.
func NewKVStore() KVStore {
	return &kvStoreInMemory{
		items: make(map[string][]byte),
	}
}

// Get возвращает копию значения или ErrKeyNotFound.
func (s *kvStoreInMemory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.items[key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

// Set сохраняет копию значения, чтобы избежать мутаций извне.
func (s *kvStoreInMemory) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = append([]byte(nil), value...)
	return nil
}

// Delete удаляет ключ; отсутствие ключа не ошибка.
func (s *kvStoreInMemory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

// Ping всегда успешен.
func (s *kvStoreInMemory) Ping(context.Context) error {
	return nil
}

// Len возвращает количество ключей.
func (s *kvStoreInMemory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

var _ KVStore = (*kvStoreInMemory)(nil)
