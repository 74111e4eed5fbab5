package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Leonardofps/gomarketplace/internal/domain"
)

// Get читает значение по ключу из kv_entries.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if s == nil || s.db == nil {
		return nil, errStoreNotInitialized
	}

	var value []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT value
		FROM kv_entries
		WHERE key = $1
	`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select kv entry %q: %v", domain.ErrStorageRead, key, err)
	}
	return value, nil
}

// Set полностью заменяет значение ключа и увеличивает его ревизию.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	if value == nil {
		value = []byte{}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, updated_at, revision)
		VALUES ($1, $2, NOW(), 1)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    updated_at = NOW(),
		    revision = kv_entries.revision + 1
	`, key, value)
	if err != nil {
		return fmt.Errorf("%w: upsert kv entry %q: %v", domain.ErrStorageWrite, key, err)
	}
	return nil
}

// Revision возвращает число перезаписей ключа; 0, если ключа нет.
func (s *Store) Revision(ctx context.Context, key string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errStoreNotInitialized
	}

	var revision int64
	err := s.db.QueryRowContext(ctx, `SELECT revision FROM kv_entries WHERE key = $1`, key).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select kv revision %q: %w", key, err)
	}
	return revision, nil
}

var (
	_ domain.KeyValueStore = (*Store)(nil)
	_ domain.Pinger        = (*Store)(nil)
)
