package rates

import "time"

const (
	DatePolicyRecord  = "record"
	DatePolicyCurrent = "current"
)

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ClampDate returns the UTC day of date, or today when date lies in the future.
func ClampDate(date, now time.Time) time.Time {
	day := Day(date)
	today := Day(now)
	if day.After(today) {
		return today
	}
	return day
}

// ConversionDate picks the first recorded date among candidates, clamped to
// today. With DatePolicyCurrent, or when no candidate is set, it is today.
func ConversionDate(policy string, now time.Time, candidates ...*time.Time) time.Time {
	if policy != DatePolicyCurrent {
		for _, c := range candidates {
			if c != nil && !c.IsZero() {
				return ClampDate(*c, now)
			}
		}
	}
	return Day(now)
}
