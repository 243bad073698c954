package shared

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits stored for currency amounts.
const MoneyScale = 2

// NUMERIC(12,2)
const moneyIntegerDigits = 10

var moneyLimit = decimal.New(1, moneyIntegerDigits)

// RoundMoney rounds d half away from zero to currency precision.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// CheckMoney returns a user-facing message when d is not a storable non-negative amount, or "".
func CheckMoney(d decimal.Decimal) string {
	switch {
	case d.IsNegative():
		return "Ensure this value is greater than or equal to 0."
	case !d.Equal(d.Truncate(MoneyScale)):
		return "Ensure that there are no more than 2 decimal places."
	case d.GreaterThanOrEqual(moneyLimit):
		return "Ensure that there are no more than 12 digits in total."
	}
	return ""
}

// ParseMoney parses user input such as "10", "10.5" or "1,250.00".
func ParseMoney(raw string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	return decimal.NewFromString(cleaned)
}

// FormatMoney renders d with exactly two fractional digits.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}
