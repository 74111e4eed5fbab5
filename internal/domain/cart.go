package domain

import (
	"math"
	"strings"
)

// CartStorageKey — единственный ключ, под которым хранится снимок корзины.
// Все пути чтения и записи обязаны использовать именно его.
const CartStorageKey = "@GoMarketplace:cart"

// Product описывает товар, который добавляют в корзину (без количества).
type Product struct {
	// ID — внешний идентификатор товара, уникален в пределах корзины.
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
}

// CartItem представляет одну позицию корзины.
type CartItem struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
	// Quantity всегда >= 1: позиция с нулевым количеством удаляется.
	Quantity int `json:"quantity"`
}

// Validate проверяет входные данные товара перед добавлением.
func (p Product) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrProductIDRequired
	}
	return validatePrice(p.Price)
}

func validatePrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return ErrProductPriceInvalid
	}
	if price < 0 {
		return ErrProductPriceNegative
	}
	return nil
}

// NewCartItem создаёт позицию корзины с количеством 1.
func NewCartItem(p Product) CartItem {
	return CartItem{
		ID:       p.ID,
		Title:    p.Title,
		ImageURL: p.ImageURL,
		Price:    p.Price,
		Quantity: 1,
	}
}

// Product возвращает описание товара без количества.
func (i CartItem) Product() Product {
	return Product{
		ID:       i.ID,
		Title:    i.Title,
		ImageURL: i.ImageURL,
		Price:    i.Price,
	}
}

// ValidateItems проверяет инварианты снимка корзины и возвращает список замечаний.
func ValidateItems(items []CartItem) []error {
	var errs []error

	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.ID) == "" {
			errs = append(errs, ErrProductIDRequired)
		}
		if err := validatePrice(item.Price); err != nil {
			errs = append(errs, err)
		}
		if item.Quantity < 1 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if _, dup := seen[item.ID]; dup {
			errs = append(errs, ErrDuplicateItem)
		}
		seen[item.ID] = struct{}{}
	}

	return errs
}

// CloneItems возвращает независимую копию снимка.
func CloneItems(items []CartItem) []CartItem {
	out := make([]CartItem, len(items))
	copy(out, items)
	return out
}

// IndexOf возвращает позицию товара в снимке или -1.
func IndexOf(items []CartItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}
