package rates

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrPairNotQuoted = errors.New("currency not quoted")

// Table is a set of rates quoted against one base currency on one day.
type Table struct {
	Base   string
	Date   time.Time
	Source string
	Rates  map[string]decimal.Decimal
}

func (t Table) quote(currency string) (decimal.Decimal, bool) {
	if strings.EqualFold(currency, t.Base) {
		return decimal.NewFromInt(1), true
	}
	r, ok := t.Rates[strings.ToUpper(currency)]
	if !ok || !r.IsPositive() {
		return decimal.Zero, false
	}
	return r, true
}

// Cross derives from->to as rates[to]/rates[from].
func (t Table) Cross(from, to string) (decimal.Decimal, error) {
	fromRate, ok := t.quote(from)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s against %s", ErrPairNotQuoted, from, t.Base)
	}
	toRate, ok := t.quote(to)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s against %s", ErrPairNotQuoted, to, t.Base)
	}
	return toRate.DivRound(fromRate, 12).Round(8), nil
}
