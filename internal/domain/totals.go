package domain

import "github.com/shopspring/decimal"

// Subtotal считает сумму price*quantity по всем позициям без промежуточного округления.
// Округление выполняется только при форматировании.
func Subtotal(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(LineTotal(item))
	}
	return total
}

// LineTotal возвращает price*quantity одной позиции.
func LineTotal(item CartItem) decimal.Decimal {
	return decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
}

// TotalItemCount возвращает суммарное количество единиц товара в корзине.
func TotalItemCount(items []CartItem) int {
	var count int
	for _, item := range items {
		count += item.Quantity
	}
	return count
}
