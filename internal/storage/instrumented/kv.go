// Package instrumented оборачивает key-value хранилище метриками и трассировкой.
package instrumented

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Leonardofps/gomarketplace/internal/domain"
	"github.com/Leonardofps/gomarketplace/internal/metrics"
)

const tracerName = "github.com/Leonardofps/gomarketplace/internal/storage"

// KV — декоратор над domain.KeyValueStore.
type KV struct {
	next    domain.KeyValueStore
	backend string
	metrics *metrics.StorageMetrics
	tracer  trace.Tracer
}

// Option настраивает декоратор.
type Option func(*KV)

// WithMetrics задаёт метрики хранилища.
func WithMetrics(m *metrics.StorageMetrics) Option {
	return func(kv *KV) {
		kv.metrics = m
	}
}

// WithTracerProvider задаёт провайдер трассировки (по умолчанию глобальный).
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(kv *KV) {
		if tp != nil {
			kv.tracer = tp.Tracer(tracerName)
		}
	}
}

// Wrap оборачивает хранилище; backend попадает в метки метрик и атрибуты span'ов.
func Wrap(next domain.KeyValueStore, backend string, options ...Option) *KV {
	kv := &KV{
		next:    next,
		backend: backend,
		tracer:  otel.Tracer(tracerName),
	}
	for _, option := range options {
		option(kv)
	}
	return kv
}

// Get читает значение и фиксирует длительность. Отсутствие ключа не считается ошибкой.
func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := k.start(ctx, "get", key)
	defer span.End()

	started := time.Now()
	value, err := k.next.Get(ctx, key)
	failed := err != nil && !errors.Is(err, domain.ErrKeyNotFound)
	k.finish(span, "get", started, err, failed)
	if err == nil {
		span.SetAttributes(attribute.Int("kv.value_bytes", len(value)))
	}
	return value, err
}

// Set записывает значение и фиксирует длительность.
func (k *KV) Set(ctx context.Context, key string, value []byte) error {
	ctx, span := k.start(ctx, "set", key)
	defer span.End()
	span.SetAttributes(attribute.Int("kv.value_bytes", len(value)))

	started := time.Now()
	err := k.next.Set(ctx, key, value)
	k.finish(span, "set", started, err, err != nil)
	return err
}

// Ping проксирует проверку доступности, если её поддерживает обёрнутое хранилище.
func (k *KV) Ping(ctx context.Context) error {
	pinger, ok := k.next.(domain.Pinger)
	if !ok {
		return nil
	}

	ctx, span := k.start(ctx, "ping", "")
	defer span.End()

	started := time.Now()
	err := pinger.Ping(ctx)
	k.finish(span, "ping", started, err, err != nil)
	return err
}

// Unwrap возвращает исходное хранилище.
func (k *KV) Unwrap() domain.KeyValueStore {
	return k.next
}

func (k *KV) start(ctx context.Context, operation, key string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("kv.backend", k.backend),
		attribute.String("kv.operation", operation),
	}
	if key != "" {
		attrs = append(attrs, attribute.String("kv.key", key))
	}
	return k.tracer.Start(ctx, "kv."+operation, trace.WithAttributes(attrs...), trace.WithSpanKind(trace.SpanKindClient))
}

func (k *KV) finish(span trace.Span, operation string, started time.Time, err error, failed bool) {
	if k.metrics != nil {
		k.metrics.Observe(k.backend, operation, time.Since(started), failed)
	}
	if failed {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

var (
	_ domain.KeyValueStore = (*KV)(nil)
	_ domain.Pinger        = (*KV)(nil)
)
