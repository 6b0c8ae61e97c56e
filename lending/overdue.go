package lending

import "time"

// DefaultLoanPeriodDays is the fixed loan period used when no other period
// is configured.
const DefaultLoanPeriodDays = 30

// Band is the policy classification of a loan's due-date status.
type Band string

const (
	// BandOverdue - the deadline has passed without return.
	BandOverdue Band = "overdue"
	// BandDueToday - the deadline is today.
	BandDueToday Band = "due_today"
	// BandUrgent - 1 to 3 days remaining.
	BandUrgent Band = "urgent"
	// BandWarning - 4 to 7 days remaining.
	BandWarning Band = "warning"
	// BandNormal - more than 7 days remaining.
	BandNormal Band = "normal"
)

// DueStatus is the result of classifying a loan against its deadline.
// DaysRemaining is signed: negative means the loan is overdue by that many
// days.
type DueStatus struct {
	DaysRemaining int
	Band          Band
}

// Classify computes the due-date status of a loan started at loanedAt, as
// seen on the day of today, with a loan period of loanPeriodDays whole days.
//
// The arithmetic is done on UTC civil dates, so the time-of-day of either
// argument never changes the outcome. Classify is deterministic and
// side-effect-free; it is the one piece of the core that is pure policy.
func Classify(loanedAt time.Time, today time.Time, loanPeriodDays int) DueStatus {
	deadline := civilDate(loanedAt).AddDate(0, 0, loanPeriodDays)
	daysRemaining := wholeDaysBetween(civilDate(today), deadline)

	return DueStatus{
		DaysRemaining: daysRemaining,
		Band:          bandFor(daysRemaining),
	}
}

func bandFor(daysRemaining int) Band {
	switch {
	case daysRemaining < 0:
		return BandOverdue
	case daysRemaining == 0:
		return BandDueToday
	case daysRemaining <= 3:
		return BandUrgent
	case daysRemaining <= 7:
		return BandWarning
	default:
		return BandNormal
	}
}

// civilDate truncates a timestamp to its UTC calendar day.
func civilDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// wholeDaysBetween returns to - from in whole days; both arguments must be
// civil dates.
func wholeDaysBetween(from time.Time, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
