package money

import "github.com/shopspring/decimal"

type Severity string

const (
	SeverityNone     Severity = ""
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

var (
	conversionCriticalPct = decimal.NewFromInt(10)
	conversionWarningPct  = decimal.NewFromInt(1)
)

// AmountsEqual compares nullable amounts: two nulls are equal, a null never
// equals a value, and values match within Tolerance.
func AmountsEqual(a, b decimal.NullDecimal) bool {
	if !a.Valid || !b.Valid {
		return a.Valid == b.Valid
	}
	return WithinTolerance(a.Decimal, b.Decimal, Tolerance)
}

func WithinTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// PercentError is |actual-expected|/expected*100. A zero expectation yields
// 100 for any positive actual and 0 otherwise.
func PercentError(expected, actual decimal.Decimal) decimal.Decimal {
	if expected.IsZero() {
		if actual.IsPositive() {
			return hundred
		}
		return decimal.Zero
	}
	return actual.Sub(expected).Abs().Div(expected.Abs()).Mul(hundred)
}

// ConversionSeverity classifies a stored converted amount against the
// recomputed one. A zero recording of a nonzero amount is a missing
// conversion and always critical.
func ConversionSeverity(expected, recorded decimal.Decimal) Severity {
	if recorded.IsZero() && !expected.IsZero() {
		return SeverityCritical
	}
	pct := PercentError(expected, recorded)
	switch {
	case pct.GreaterThan(conversionCriticalPct):
		return SeverityCritical
	case pct.GreaterThan(conversionWarningPct):
		return SeverityWarning
	default:
		return SeverityNone
	}
}
