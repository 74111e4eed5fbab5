package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsStorageError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "read error",
			err:  ErrStorageRead,
			want: true,
		},
		{
			name: "wrapped write error",
			err:  fmt.Errorf("%w: upsert kv entry: connection reset", ErrStorageWrite),
			want: true,
		},
		{
			name: "joined write error",
			err:  errors.Join(ErrStorageWrite, errors.New("additional context")),
			want: true,
		},
		{
			name: "missing key",
			err:  ErrKeyNotFound,
			want: false,
		},
		{
			name: "usage error",
			err:  ErrCartNotProvided,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStorageError(tt.err); got != tt.want {
				t.Errorf("IsStorageError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsUsageError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "cart not provided",
			err:  ErrCartNotProvided,
			want: true,
		},
		{
			name: "wrapped cart not provided",
			err:  fmt.Errorf("render cart: %w", ErrCartNotProvided),
			want: true,
		},
		{
			name: "invalid product",
			err:  ErrProductIDRequired,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUsageError(tt.err); got != tt.want {
				t.Errorf("IsUsageError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProductErrorsWrapInvalidProduct(t *testing.T) {
	for _, err := range []error{ErrProductIDRequired, ErrProductPriceNegative, ErrProductPriceInvalid} {
		if !errors.Is(err, ErrInvalidProduct) {
			t.Errorf("%v must wrap ErrInvalidProduct", err)
		}
	}
}
