// Package money форматирует суммы корзины для отображения.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Значения по умолчанию соответствуют витрине: бразильский реал.
const (
	DefaultSymbol = "R$"
	DefaultLocale = "pt-BR"
)

// Formatter выводит сумму как "<символ> <число>" с двумя знаками и разделителями локали.
type Formatter struct {
	symbol  string
	printer *message.Printer
}

// NewFormatter создаёт форматтер для символа валюты и BCP 47 локали.
func NewFormatter(symbol, locale string) (*Formatter, error) {
	if strings.TrimSpace(locale) == "" {
		locale = DefaultLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse currency locale %q: %w", locale, err)
	}

	return &Formatter{
		symbol:  strings.TrimSpace(symbol),
		printer: message.NewPrinter(tag),
	}, nil
}

// MustDefault возвращает форматтер R$/pt-BR.
func MustDefault() *Formatter {
	f, err := NewFormatter(DefaultSymbol, DefaultLocale)
	if err != nil {
		panic(err)
	}
	return f
}

// Format округляет сумму до копеек только для вывода; сама сумма не меняется.
func (f *Formatter) Format(amount decimal.Decimal) string {
	value := amount.Round(2).InexactFloat64()
	formatted := f.printer.Sprint(number.Decimal(value, number.Scale(2)))
	if f.symbol == "" {
		return formatted
	}
	return f.symbol + " " + formatted
}

// FormatPrice форматирует цену одной позиции.
func (f *Formatter) FormatPrice(price float64) string {
	return f.Format(decimal.NewFromFloat(price))
}
