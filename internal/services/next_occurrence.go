package services

import (
	"fmt"
	"time"

	"financas/internal/core"
)

// NextOccurrence computes the next scheduled date after base for a
// recurrence descriptor. Pure function of its inputs. Month and year
// arithmetic clamps to the last valid day of the target month, so a
// schedule anchored on the 31st lands on Feb 28/29 instead of rolling
// into March.
func NextOccurrence(base time.Time, freq core.Frequency, interval int) (time.Time, error) {
	if interval < 1 {
		return time.Time{}, fmt.Errorf("recurrence interval must be at least 1, got %d", interval)
	}

	switch freq {
	case core.Daily:
		return base.AddDate(0, 0, interval), nil
	case core.Weekly:
		return base.AddDate(0, 0, interval*7), nil
	case core.Monthly:
		return core.AddMonthsClamped(base, interval), nil
	case core.Yearly:
		return core.AddYearsClamped(base, interval), nil
	default:
		return time.Time{}, fmt.Errorf("unknown recurrence frequency: %s", freq)
	}
}

// PreviousOccurrence is the inverse shift. For monthly and yearly
// schedules the round trip is not exact when the forward shift was
// clamped to a shorter month.
func PreviousOccurrence(base time.Time, freq core.Frequency, interval int) (time.Time, error) {
	if interval < 1 {
		return time.Time{}, fmt.Errorf("recurrence interval must be at least 1, got %d", interval)
	}

	switch freq {
	case core.Daily:
		return base.AddDate(0, 0, -interval), nil
	case core.Weekly:
		return base.AddDate(0, 0, -interval*7), nil
	case core.Monthly:
		return core.AddMonthsClamped(base, -interval), nil
	case core.Yearly:
		return core.AddYearsClamped(base, -interval), nil
	default:
		return time.Time{}, fmt.Errorf("unknown recurrence frequency: %s", freq)
	}
}
