package credit

import "time"

// =============================================================================
// DATE HELPERS - Calendar-month stepping for due dates
// =============================================================================

// DateOnly truncates a timestamp to a UTC calendar date. Due dates and
// paid dates are compared at day granularity only.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AddMonthsClamped advances a date by n calendar months, clamping to the
// last day of the target month when the source day does not exist there
// (Jan 31 + 1 month = Feb 28/29, never Mar 3). This is the normalized
// month-rollover rule for all due-date arithmetic; time.AddDate's overflow
// behavior is deliberately not used for due dates.
func AddMonthsClamped(t time.Time, n int) time.Time {
	t = DateOnly(t)
	year, month, day := t.Date()

	target := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := daysInMonth(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// BeforeDay reports whether a falls on an earlier calendar day than b,
// ignoring time of day.
func BeforeDay(a, b time.Time) bool {
	return DateOnly(a).Before(DateOnly(b))
}

// SameDay reports whether two timestamps fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}
