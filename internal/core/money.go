// Package core defines the domain model shared by every service:
// transactions, categories, goals, users, and the money/date helpers the
// recurrence engine builds on.
package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount parses a positive decimal amount from user input. Both dot
// and comma decimal separators are accepted; the result is rounded half-up
// to 2 decimal places.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Round2 rounds an amount to the 2-decimal precision used everywhere a
// monetary value is persisted or displayed.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatAmount renders an amount with its currency code, e.g. "BRL 12.34".
func FormatAmount(currency string, d decimal.Decimal) string {
	if currency == "" {
		currency = "BRL"
	}
	return currency + " " + d.StringFixed(2)
}

// MonthKey returns the "YYYY-MM" bucket a date falls into. Analytics
// snapshots and summaries are keyed by it.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// TruncateToDay drops the time-of-day portion of t, keeping its location.
func TruncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// AddMonthsClamped advances t by the given number of calendar months,
// clamping the day-of-month to the last valid day of the target month:
// Jan 31 + 1 month = Feb 28 (29 in leap years). months may be negative.
func AddMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month, 1, 0, 0, 0, 0, t.Location())
	target := first.AddDate(0, months, 0)
	last := lastDayOfMonth(target.Year(), target.Month())
	if day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// AddYearsClamped advances t by whole years with the same day clamping,
// so Feb 29 + 1 year = Feb 28.
func AddYearsClamped(t time.Time, years int) time.Time {
	return AddMonthsClamped(t, years*12)
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
