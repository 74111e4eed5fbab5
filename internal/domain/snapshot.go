package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// EncodeSnapshot сериализует снимок корзины в JSON-массив. Пустой снимок даёт "[]".
func EncodeSnapshot(items []CartItem) ([]byte, error) {
	if items == nil {
		items = []CartItem{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode cart snapshot: %w", err)
	}
	return payload, nil
}

// DecodeSnapshot разбирает сохранённый снимок. Любое отклонение от ожидаемой формы
// возвращается как ErrStorageRead; значения полей не приводятся.
func DecodeSnapshot(payload []byte) ([]CartItem, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: payload is not a JSON array", ErrStorageRead)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()

	var raw []snapshotItem
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after snapshot", ErrStorageRead)
	}

	items := make([]CartItem, 0, len(raw))
	for idx, r := range raw {
		if r.ID == nil || r.Quantity == nil || r.Price == nil {
			return nil, fmt.Errorf("%w: item %d misses required fields", ErrStorageRead, idx)
		}
		items = append(items, CartItem{
			ID:       *r.ID,
			Title:    r.Title,
			ImageURL: r.ImageURL,
			Price:    *r.Price,
			Quantity: *r.Quantity,
		})
	}

	if errs := ValidateItems(items); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrStorageRead, errors.Join(errs...))
	}

	return items, nil
}

// snapshotItem отличает отсутствующие обязательные поля от нулевых значений.
type snapshotItem struct {
	ID       *string  `json:"id"`
	Title    string   `json:"title"`
	ImageURL string   `json:"image_url"`
	Price    *float64 `json:"price"`
	Quantity *int     `json:"quantity"`
}
