package cart

import (
	"github.com/shopspring/decimal"

	"github.com/Leonardofps/gomarketplace/internal/domain"
)

// FormatFunc превращает сумму в строку для отображения.
type FormatFunc func(amount decimal.Decimal) string

// LineView — позиция корзины с отформатированными ценой и суммой строки.
type LineView struct {
	domain.CartItem
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

// View — модель чтения для экрана корзины. Пересчитывается из снимка при каждом запросе.
type View struct {
	Products   []domain.CartItem `json:"products"`
	Lines      []LineView        `json:"lines"`
	Subtotal   string            `json:"subtotal"`
	Total      string            `json:"total"`
	TotalItems int               `json:"total_items"`
	Empty      bool              `json:"empty"`
}

// BuildView считает агрегаты по снимку. Без format суммы выводятся как decimal с двумя знаками.
func BuildView(items []domain.CartItem, format FormatFunc) View {
	if format == nil {
		format = func(amount decimal.Decimal) string { return amount.StringFixed(2) }
	}
	if items == nil {
		items = []domain.CartItem{}
	}

	lines := make([]LineView, 0, len(items))
	for _, item := range items {
		lines = append(lines, LineView{
			CartItem:  item,
			UnitPrice: format(decimal.NewFromFloat(item.Price)),
			LineTotal: format(domain.LineTotal(item)),
		})
	}
	subtotal := domain.Subtotal(items)

	return View{
		Products:   items,
		Lines:      lines,
		Subtotal:   subtotal.String(),
		Total:      format(subtotal),
		TotalItems: domain.TotalItemCount(items),
		Empty:      len(items) == 0,
	}
}

// View строит модель чтения по текущему снимку корзины.
func (s *Store) View(format FormatFunc) (View, error) {
	if s == nil {
		return View{}, domain.ErrCartNotProvided
	}
	return BuildView(s.Products(), format), nil
}
