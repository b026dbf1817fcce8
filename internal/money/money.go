package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidRate = errors.New("invalid rate")

// RatePlaces is the precision rates are stored and compared at.
const RatePlaces = 8

var (
	// Tolerance is the absolute slack for balance comparisons.
	Tolerance = decimal.RequireFromString("0.01")
	hundred   = decimal.NewFromInt(100)
)

// ParseRate accepts a strictly positive rate with at most RatePlaces digits.
func ParseRate(input string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(input))
	if err != nil || !rate.IsPositive() {
		return decimal.Zero, ErrInvalidRate
	}
	if !rate.Equal(rate.Round(RatePlaces)) {
		return decimal.Zero, ErrInvalidRate
	}
	return rate, nil
}

// Round2 rounds half away from zero to cents.
func Round2(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}

func Format(value decimal.Decimal) string {
	return value.StringFixed(2)
}

func FormatRate(value decimal.Decimal) string {
	return value.Round(RatePlaces).String()
}

// FormatNull renders a missing value as an empty string.
func FormatNull(value decimal.NullDecimal) string {
	if !value.Valid {
		return ""
	}
	return Format(value.Decimal)
}

// OrZero treats a missing converted amount as zero.
func OrZero(value decimal.NullDecimal) decimal.Decimal {
	if !value.Valid {
		return decimal.Zero
	}
	return value.Decimal
}
