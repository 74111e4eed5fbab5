package cart

import (
	"context"

	"github.com/Leonardofps/gomarketplace/internal/domain"
)

// Provider — явная точка доступа к единственному экземпляру корзины.
// Потребители получают его через конструктор, а не через глобальный поиск.
type Provider struct {
	store *Store
}

// NewProvider оборачивает уже созданную корзину.
func NewProvider(store *Store) *Provider {
	return &Provider{store: store}
}

// Cart возвращает корзину или ErrCartNotProvided, если провайдер не инициализирован.
func (p *Provider) Cart() (*Store, error) {
	if p == nil || p.store == nil {
		return nil, domain.ErrCartNotProvided
	}
	return p.store, nil
}

type storeContextKey struct{}

// WithStore кладёт корзину в контекст.
func WithStore(ctx context.Context, store *Store) context.Context {
	return context.WithValue(ctx, storeContextKey{}, store)
}

// FromContext достаёт корзину из контекста или возвращает ErrCartNotProvided.
func FromContext(ctx context.Context) (*Store, error) {
	if ctx == nil {
		return nil, domain.ErrCartNotProvided
	}
	store, ok := ctx.Value(storeContextKey{}).(*Store)
	if !ok || store == nil {
		return nil, domain.ErrCartNotProvided
	}
	return store, nil
}
