package payslip

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"payrolladmin/internal/domain/payroll"
)

var moneyPrinter = message.NewPrinter(language.English)

// CurrencyCode normalises an ISO 4217 code, defaulting to AED.
func CurrencyCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = payroll.DefaultCurrency
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("invalid currency code %q: %w", code, err)
	}
	return unit.String(), nil
}

// FormatMoney renders v as "<CODE> 1,234.50". A null amount formats as "".
func FormatMoney(v decimal.NullDecimal, code string) (string, error) {
	if !v.Valid {
		return "", nil
	}
	iso, err := CurrencyCode(code)
	if err != nil {
		return "", err
	}
	amount := v.Decimal.Round(2).InexactFloat64()
	return moneyPrinter.Sprintf("%s %v", iso, number.Decimal(amount, number.Scale(2))), nil
}
