package valueobject

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

var hundred = decimal.NewFromInt(100)

type Money struct {
	Amount   decimal.Decimal
	Currency string
}

func NewMoney(amount decimal.Decimal, currencyCode string) (Money, error) {
	if amount.IsNegative() {
		return Money{}, apperror.New(apperror.ErrCodeValidation, "сумма не может быть отрицательной")
	}
	code, err := NormalizeCurrency(currencyCode)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: RoundAmount(amount), Currency: code}, nil
}

func (m Money) Add(other Money) Money {
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}
}

func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.Currency
}

// NormalizeCurrency приводит код валюты к верхнему регистру и проверяет его по ISO 4217.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", apperror.New(apperror.ErrCodeValidation, "код валюты должен состоять из 3 букв (ISO 4217)")
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", apperror.Newf(apperror.ErrCodeValidation, "неизвестная валюта %s", code)
	}
	return unit.String(), nil
}

// RoundAmount округляет сумму до двух знаков (половина от нуля).
func RoundAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// CalculateFee считает комиссию escrow: round(total * percentage / 100, 2).
func CalculateFee(total, percentage decimal.Decimal) decimal.Decimal {
	return RoundAmount(total.Mul(percentage).Div(hundred))
}

// Percentage возвращает part/whole*100 с округлением до двух знаков.
// При нулевом знаменателе возвращается fallback.
func Percentage(part, whole int, fallback float64) float64 {
	if whole == 0 {
		return fallback
	}
	value, _ := decimal.NewFromInt(int64(part)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(whole))).
		Round(2).
		Float64()
	return value
}
