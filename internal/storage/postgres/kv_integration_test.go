package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Leonardofps/gomarketplace/internal/domain"
)

func TestKV_PostgresGetSetRoundTrip(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := store.Get(ctx, domain.CartStorageKey); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if rev, err := store.Revision(ctx, domain.CartStorageKey); err != nil || rev != 0 {
		t.Fatalf("expected revision 0 for missing key, got %d (%v)", rev, err)
	}

	if err := store.Set(ctx, domain.CartStorageKey, []byte(`[]`)); err != nil {
		t.Fatalf("first set: %v", err)
	}
	payload := []byte(`[{"id":"a","title":"t","image_url":"i","price":1.5,"quantity":2}]`)
	if err := store.Set(ctx, domain.CartStorageKey, payload); err != nil {
		t.Fatalf("second set: %v", err)
	}

	got, err := store.Get(ctx, domain.CartStorageKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("expected %s, got %s", payload, got)
	}

	rev, err := store.Revision(ctx, domain.CartStorageKey)
	if err != nil {
		t.Fatalf("revision: %v", err)
	}
	if rev != 2 {
		t.Fatalf("expected revision 2, got %d", rev)
	}
}

func TestKV_NilStore(t *testing.T) {
	var store *Store
	ctx := context.Background()

	if _, err := store.Get(ctx, "k"); err == nil {
		t.Fatal("expected error for nil store Get")
	}
	if err := store.Set(ctx, "k", nil); err == nil {
		t.Fatal("expected error for nil store Set")
	}
}
