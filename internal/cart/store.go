// Package cart содержит контейнер состояния корзины: единственный источник правды
// о её содержимом и посредник между потребителями и key-value хранилищем.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Leonardofps/gomarketplace/internal/domain"
	"github.com/Leonardofps/gomarketplace/internal/metrics"
	"github.com/Leonardofps/gomarketplace/internal/service/persist"
)

// Названия операций для логов и метрик.
const (
	OperationAdd       = "add"
	OperationIncrement = "increment"
	OperationDecrement = "decrement"
)

// WriteQueue принимает записи снимка в порядке фиксации мутаций.
type WriteQueue interface {
	Enqueue(job persist.Job) uint64
}

// StoreOptions задаёт параметры Store.
type StoreOptions struct {
	Logger  *log.Entry
	Key     string
	Metrics *metrics.CartMetrics
	Clock   func() time.Time
}

// Option настраивает Store.
type Option func(*StoreOptions)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *StoreOptions) {
		opts.Logger = logger
	}
}

// WithKey переопределяет ключ снимка (по умолчанию domain.CartStorageKey).
func WithKey(key string) Option {
	return func(opts *StoreOptions) {
		opts.Key = key
	}
}

// WithMetrics задаёт метрики корзины.
func WithMetrics(m *metrics.CartMetrics) Option {
	return func(opts *StoreOptions) {
		opts.Metrics = m
	}
}

// WithClock задаёт источник времени для событий.
func WithClock(clock func() time.Time) Option {
	return func(opts *StoreOptions) {
		opts.Clock = clock
	}
}

type mutationKind int

const (
	mutationAdd mutationKind = iota
	mutationIncrement
	mutationDecrement
)

type mutation struct {
	kind    mutationKind
	product domain.Product
	id      string
}

// Store хранит упорядоченный список позиций корзины.
//
// Каждая мутация выполняется целиком под мьютексом: состояние фиксируется в памяти,
// снимок сериализуется и ставится в очередь записи до освобождения мьютекса,
// поэтому порядок записей совпадает с порядком фиксаций.
//
// До завершения Initialize мутации применяются к памяти и запоминаются, но не пишутся:
// после загрузки они переигрываются поверх сохранённого снимка и записываются одной записью.
type Store struct {
	kv      domain.KeyValueStore
	queue   WriteQueue
	key     string
	logger  *log.Entry
	metrics *metrics.CartMetrics
	now     func() time.Time

	initMu sync.Mutex

	mu      sync.RWMutex
	items   []domain.CartItem
	loaded  bool
	pending []mutation
	ready   chan struct{}
}

// NewStore создаёт пустую корзину. Снимок загружается вызовом Initialize.
func NewStore(kv domain.KeyValueStore, queue WriteQueue, options ...Option) *Store {
	opts := StoreOptions{
		Key:   domain.CartStorageKey,
		Clock: func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "cart-store")
	}
	if opts.Key == "" {
		opts.Key = domain.CartStorageKey
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}

	return &Store{
		kv:      kv,
		queue:   queue,
		key:     opts.Key,
		logger:  logger,
		metrics: opts.Metrics,
		now:     opts.Clock,
		items:   []domain.CartItem{},
		ready:   make(chan struct{}),
	}
}

// Initialize читает сохранённый снимок и заменяет им содержимое корзины.
// Отсутствующий ключ и повреждённый снимок означают пустую корзину.
// Ошибка хранилища возвращается, корзина остаётся незагруженной и Initialize можно повторить.
// После успешной загрузки повторные вызовы ничего не делают.
func (s *Store) Initialize(ctx context.Context) error {
	if s == nil {
		return domain.ErrCartNotProvided
	}

	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.Loaded() {
		return nil
	}
	if s.kv == nil {
		return fmt.Errorf("load cart snapshot: key-value store is not configured")
	}

	loaded, result, err := s.readSnapshot(ctx)
	if s.metrics != nil {
		s.metrics.RecordLoad(result)
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := loaded
	for _, m := range s.pending {
		items, _, _ = applyMutation(items, m)
	}
	replayed := len(s.pending)

	s.items = items
	s.pending = nil
	s.loaded = true

	s.logger.WithFields(log.Fields{
		"result":   result,
		"items":    len(items),
		"replayed": replayed,
	}).Info("cart snapshot loaded")

	if replayed > 0 {
		s.issueWriteLocked(domain.CartEventReplayed, "", 0)
	}
	if s.metrics != nil {
		s.metrics.SetCartSize(len(s.items), domain.TotalItemCount(s.items))
	}
	close(s.ready)

	return nil
}

func (s *Store) readSnapshot(ctx context.Context) ([]domain.CartItem, string, error) {
	payload, err := s.kv.Get(ctx, s.key)
	switch {
	case errors.Is(err, domain.ErrKeyNotFound):
		return []domain.CartItem{}, metrics.LoadResultEmpty, nil
	case err != nil:
		s.logger.WithError(err).WithField("key", s.key).Warn("failed to read cart snapshot")
		return nil, metrics.LoadResultError, fmt.Errorf("load cart snapshot: %w", err)
	}

	items, err := domain.DecodeSnapshot(payload)
	if err != nil {
		s.logger.WithError(err).WithField("key", s.key).Warn("persisted cart snapshot is malformed, starting with an empty cart")
		return []domain.CartItem{}, metrics.LoadResultMalformed, nil
	}
	return items, metrics.LoadResultLoaded, nil
}

// Loaded сообщает, завершилась ли начальная загрузка.
func (s *Store) Loaded() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Ready закрывается после успешной начальной загрузки.
func (s *Store) Ready() <-chan struct{} {
	if s == nil {
		return nil
	}
	return s.ready
}

// Products возвращает копию текущего снимка корзины.
func (s *Store) Products() []domain.CartItem {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneItems(s.items)
}

// AddToCart добавляет товар с количеством 1. Если товар уже в корзине, ведёт себя
// ровно как Increment(p.ID): поля существующей позиции не меняются.
func (s *Store) AddToCart(p domain.Product) error {
	if s == nil {
		return domain.ErrCartNotProvided
	}
	if err := p.Validate(); err != nil {
		return err
	}
	return s.mutate(OperationAdd, mutation{kind: mutationAdd, product: p, id: p.ID})
}

// Increment увеличивает количество позиции на 1. Неизвестный id не меняет содержимое,
// но снимок всё равно перезаписывается.
func (s *Store) Increment(id string) error {
	if s == nil {
		return domain.ErrCartNotProvided
	}
	return s.mutate(OperationIncrement, mutation{kind: mutationIncrement, id: id})
}

// Decrement уменьшает количество позиции на 1; позиция с количеством 1 (или отсутствующая)
// удаляется целиком. Нулевое количество никогда не видно потребителям.
func (s *Store) Decrement(id string) error {
	if s == nil {
		return domain.ErrCartNotProvided
	}
	return s.mutate(OperationDecrement, mutation{kind: mutationDecrement, id: id})
}

func (s *Store) mutate(operation string, m mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, eventType, qty := applyMutation(s.items, m)
	s.items = next

	entry := s.logger.WithFields(log.Fields{
		"operation":  operation,
		"product_id": m.id,
	})

	if !s.loaded {
		s.pending = append(s.pending, m)
		entry.Debug("cart is not loaded yet, write deferred until load completes")
		return nil
	}

	s.issueWriteLocked(eventType, m.id, qty)
	entry.WithField("quantity", qty).Debug("cart mutation committed")

	if s.metrics != nil {
		s.metrics.RecordMutation(operation, len(s.items), domain.TotalItemCount(s.items))
	}
	return nil
}

// issueWriteLocked сериализует текущий снимок и ставит запись в очередь. Вызывается под s.mu.
func (s *Store) issueWriteLocked(eventType domain.CartEventType, productID string, qty int) {
	if s.queue == nil {
		s.logger.Warn("cart write queue is not configured, snapshot is not persisted")
		return
	}

	payload, err := domain.EncodeSnapshot(s.items)
	if err != nil {
		s.logger.WithError(err).Error("failed to encode cart snapshot")
		s.queue.Enqueue(persist.Job{Key: s.key, Err: err, IssuedAt: s.now()})
		return
	}

	occurred := s.now()
	event := &domain.CartEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		ProductID:  productID,
		Quantity:   qty,
		TotalItems: domain.TotalItemCount(s.items),
		Subtotal:   domain.Subtotal(s.items).String(),
		OccurredAt: occurred,
	}

	s.queue.Enqueue(persist.Job{
		Key:      s.key,
		Payload:  payload,
		Event:    event,
		IssuedAt: occurred,
	})
}

// applyMutation возвращает новый снимок, не изменяя исходный, тип события и итоговое
// количество затронутой позиции (0, если позиция удалена или не найдена).
func applyMutation(items []domain.CartItem, m mutation) ([]domain.CartItem, domain.CartEventType, int) {
	next := domain.CloneItems(items)
	idx := domain.IndexOf(next, m.id)

	switch m.kind {
	case mutationAdd:
		if idx >= 0 {
			next[idx].Quantity++
			return next, domain.CartEventItemIncremented, next[idx].Quantity
		}
		next = append(next, domain.NewCartItem(m.product))
		return next, domain.CartEventItemAdded, 1

	case mutationIncrement:
		if idx < 0 {
			return next, domain.CartEventItemIncremented, 0
		}
		next[idx].Quantity++
		return next, domain.CartEventItemIncremented, next[idx].Quantity

	case mutationDecrement:
		if idx >= 0 && next[idx].Quantity > 1 {
			next[idx].Quantity--
			return next, domain.CartEventItemDecremented, next[idx].Quantity
		}
		if idx >= 0 {
			next = append(next[:idx], next[idx+1:]...)
		}
		return next, domain.CartEventItemRemoved, 0
	}

	return next, "", 0
}
