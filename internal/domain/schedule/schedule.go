// Package schedule computes when a savings plan is next due.
package schedule

import (
	"fmt"
	"time"

	"github.com/satstack-service/satstack_service/internal/domain/entities"
	domainerrors "github.com/satstack-service/satstack_service/internal/domain/errors"
)

// NextExecution returns the next due instant for a plan of the given
// frequency, advanced from the reference instant. Monthly plans use
// calendar month arithmetic with the day-of-month clamped to the target
// month's length, so Jan 31 advances to Feb 29 in a leap year rather
// than spilling into March. The result is truncated to whole seconds.
func NextExecution(frequency entities.Frequency, from time.Time) (time.Time, error) {
	var next time.Time

	switch frequency {
	case entities.FrequencyDaily:
		next = from.AddDate(0, 0, 1)
	case entities.FrequencyWeekly:
		next = from.AddDate(0, 0, 7)
	case entities.FrequencyBiweekly:
		next = from.AddDate(0, 0, 14)
	case entities.FrequencyMonthly:
		next = addMonthClamped(from)
	default:
		return time.Time{}, fmt.Errorf("%w: %q", domainerrors.ErrUnsupportedFrequency, frequency)
	}

	return next.Truncate(time.Second), nil
}

// addMonthClamped advances t by one calendar month, clamping the day to
// the last day of the target month. time.AddDate normalizes overflowing
// days into the following month, which is exactly the behavior we must
// avoid for month-end start dates.
func addMonthClamped(t time.Time) time.Time {
	year, month, day := t.Date()

	// Zero day of month+2 is the last day of month+1.
	lastDay := time.Date(year, month+2, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > lastDay {
		day = lastDay
	}

	return time.Date(year, month+1, day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
