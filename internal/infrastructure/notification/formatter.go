package notification

import (
	"fmt"

	"github.com/fieldservice/backend/internal/domain/shared/valueobject"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CurrencyFormatter renders money with the currency symbol and the digit
// grouping of a locale, e.g. "R$ 1.234,50" for pt-BR.
type CurrencyFormatter struct {
	printer *message.Printer
	unit    currency.Unit
}

// NewCurrencyFormatter creates a formatter for a BCP 47 locale and an ISO 4217 currency code
func NewCurrencyFormatter(locale, code string) (*CurrencyFormatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("invalid currency %q: %w", code, err)
	}
	return &CurrencyFormatter{printer: message.NewPrinter(tag), unit: unit}, nil
}

// FormatMoney implements the finance MoneyFormatter port
func (f *CurrencyFormatter) FormatMoney(m valueobject.Money) string {
	return f.printer.Sprint(currency.Symbol(f.unit.Amount(m.Float64())))
}
