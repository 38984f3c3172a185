package domain

import (
	"strings"
	"time"
)

const (
	monthStartLayout = "2006-01-02"
	monthLayout      = "2006-01"
)

// MonthStart truncates t to the first day of its month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// PreviousMonth returns the first day of the month preceding month.
func PreviousMonth(month time.Time) time.Time {
	return MonthStart(month).AddDate(0, -1, 0)
}

// ParseMonthStart parses the job form "YYYY-MM-01". Any other day of month is rejected.
func ParseMonthStart(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrMissingMonth
	}
	parsed, err := time.Parse(monthStartLayout, value)
	if err != nil || parsed.Day() != 1 {
		return time.Time{}, ErrInvalidMonth
	}
	return parsed, nil
}

// ParseBillingMonth parses the "YYYY-MM" form used by the synchronous run and
// returns the month together with its predecessor.
func ParseBillingMonth(value string) (month, prev time.Time, err error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, time.Time{}, ErrMissingMonth
	}
	month, err = time.Parse(monthLayout, value)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidMonth
	}
	// month minus its day-of-month lands on the last day of the previous month.
	prev = MonthStart(month.AddDate(0, 0, -month.Day()))
	return month, prev, nil
}

// FormatMonth renders a month as "YYYY-MM-01".
func FormatMonth(month time.Time) string {
	return MonthStart(month).Format(monthStartLayout)
}
