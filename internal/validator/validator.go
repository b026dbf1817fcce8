package validator

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"donorcrm/internal/money"
)

var (
	ErrInvalidCurrency = errors.New("invalid currency code")
	ErrSameCurrency    = errors.New("currencies must differ")
	ErrInvalidRate     = errors.New("invalid rate")
	ErrInvalidDate     = errors.New("invalid date, expected YYYY-MM-DD")
	ErrFutureDate      = errors.New("date is in the future")
	ErrInvalidOperator = errors.New("invalid operator id")
)

var (
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	operatorRegex = regexp.MustCompile(`^[a-zA-Z0-9_.@-]{3,64}$`)
)

// Currency normalizes and validates an ISO 4217 style code.
func Currency(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if !currencyRegex.MatchString(normalized) {
		return "", ErrInvalidCurrency
	}
	return normalized, nil
}

func Rate(raw string) (decimal.Decimal, error) {
	rate, err := money.ParseRate(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidRate
	}
	return rate, nil
}

// Date parses a calendar day and rejects days after now.
func Date(raw string, now time.Time) (time.Time, error) {
	day, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	y, m, d := now.UTC().Date()
	if day.After(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)) {
		return time.Time{}, ErrFutureDate
	}
	return day, nil
}

type RateInput struct {
	From string
	To   string
	Rate decimal.Decimal
	Date time.Time
}

// ExchangeRate validates a manually seeded rate.
func ExchangeRate(from, to, rate, date string, now time.Time) (RateInput, error) {
	var in RateInput
	var err error
	if in.From, err = Currency(from); err != nil {
		return RateInput{}, err
	}
	if in.To, err = Currency(to); err != nil {
		return RateInput{}, err
	}
	if in.From == in.To {
		return RateInput{}, ErrSameCurrency
	}
	if in.Rate, err = Rate(rate); err != nil {
		return RateInput{}, err
	}
	if in.Date, err = Date(date, now); err != nil {
		return RateInput{}, err
	}
	return in, nil
}

func Operator(id string) error {
	if !operatorRegex.MatchString(id) {
		return ErrInvalidOperator
	}
	return nil
}
