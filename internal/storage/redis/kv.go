// Package redis хранит снимок корзины в Redis как обычную строку.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"github.com/Leonardofps/gomarketplace/internal/domain"
)

const (
	defaultPingAttempts = 10
	defaultMaxBackoff   = 5 * time.Second
	defaultBaseBackoff  = 200 * time.Millisecond
)

// Store — key-value хранилище поверх go-redis клиента.
type Store struct {
	client *goredis.Client
	logger *log.Entry
}

// parseOptions принимает redis:// URL или простой "host:port".
func parseOptions(addr string) *goredis.Options {
	opts, err := goredis.ParseURL(addr)
	if err == nil {
		return opts
	}
	return &goredis.Options{
		Addr:         addr,
		MinIdleConns: 1,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  180 * time.Second,
	}
}

// New создаёт клиента без проверки соединения. Для ожидания готовности используйте WaitReady.
func New(addr string, logger *log.Entry) *Store {
	if logger == nil {
		logger = log.WithField("component", "redis-kv")
	}
	return &Store{
		client: goredis.NewClient(parseOptions(addr)),
		logger: logger,
	}
}

// Open создаёт клиента и ждёт, пока Redis ответит на PING.
func Open(ctx context.Context, addr string, logger *log.Entry) (*Store, error) {
	store := New(addr, logger)
	if err := store.WaitReady(ctx, defaultPingAttempts); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// WaitReady повторяет PING с экспоненциальной задержкой, пока Redis не ответит.
func (s *Store) WaitReady(ctx context.Context, attempts int) error {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lastErr = s.Ping(ctx); lastErr == nil {
			s.logger.WithField("attempt", attempt).Info("redis is reachable")
			return nil
		}
		if attempt == attempts {
			break
		}

		backoff := defaultBaseBackoff << uint(attempt-1)
		if backoff > defaultMaxBackoff {
			backoff = defaultMaxBackoff
		}
		s.logger.WithError(lastErr).WithFields(log.Fields{
			"attempt": attempt,
			"backoff": backoff.String(),
		}).Warn("redis ping failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("redis is not reachable after %d attempts: %w", attempts, lastErr)
}

// Get читает значение по ключу.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: redis GET %q: %v", domain.ErrStorageRead, key, err)
	}
	return value, nil
}

// Set перезаписывает значение ключа без срока жизни.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("%w: redis SET %q: %v", domain.ErrStorageWrite, key, err)
	}
	return nil
}

// Ping проверяет соединение.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close закрывает пул соединений.
func (s *Store) Close() error {
	return s.client.Close()
}

var (
	_ domain.KeyValueStore = (*Store)(nil)
	_ domain.Pinger        = (*Store)(nil)
)
