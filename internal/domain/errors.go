package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound возвращается хранилищем, если ключ отсутствует. Это не ошибка для корзины.
	ErrKeyNotFound = errors.New("key not found")
	// ErrStorageRead — сохранённый снимок повреждён или не разбирается.
	ErrStorageRead = errors.New("cart snapshot is malformed")
	// ErrStorageWrite — запись снимка в хранилище не удалась.
	ErrStorageWrite = errors.New("cart snapshot write failed")
	// ErrCartNotProvided — к корзине обратились до инициализации провайдера.
	ErrCartNotProvided = errors.New("cart accessed before provider initialization")
	// ErrInvalidProduct объединяет ошибки валидации входного товара.
	ErrInvalidProduct = errors.New("invalid product")
	// Ошибка отсутствующего идентификатора товара.
	ErrProductIDRequired = fmt.Errorf("%w: product id is required", ErrInvalidProduct)
	// Ошибка отрицательной цены.
	ErrProductPriceNegative = fmt.Errorf("%w: product price must be non-negative", ErrInvalidProduct)
	// Ошибка нечисловой цены (NaN или бесконечность).
	ErrProductPriceInvalid = fmt.Errorf("%w: product price must be a finite number", ErrInvalidProduct)
	// Ошибка при некорректном количестве (< 1).
	ErrItemQtyInvalid = errors.New("item quantity must be at least one")
	// Ошибка дублирования позиции в снимке.
	ErrDuplicateItem = errors.New("duplicate item id in cart")
	// ErrEventPublish — ошибка публикации события корзины.
	ErrEventPublish = errors.New("cart event publish failed")
)

// IsStorageError проверяет, относится ли ошибка к чтению или записи снимка.
func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorageRead) || errors.Is(err, ErrStorageWrite)
}

// IsUsageError проверяет, является ли ошибка ошибкой использования (программной ошибкой).
func IsUsageError(err error) bool {
	return errors.Is(err, ErrCartNotProvided)
}
