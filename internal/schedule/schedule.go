package schedule

import (
	"time"

	"macropulse/internal/model"
)

// mpcMonths is the recurring Monetary Policy Committee decision calendar:
// meetings conclude early in these months. The repo rate follows this
// cadence instead of a plain bi-monthly rule.
var mpcMonths = []time.Month{
	time.February, time.April, time.June,
	time.August, time.October, time.December,
}

const mpcDecisionDay = 8

// NextUpdate infers the next expected release after now for an indicator.
// Returns nil when no schedule can be derived from the cadence.
func NextUpdate(ind model.Indicator, now time.Time) *time.Time {
	if isPolicyRate(ind) {
		next := nextMPCDecision(now)
		return &next
	}

	switch ind.Frequency {
	case model.FreqDaily:
		next := nextWeekday(now)
		return &next
	case model.FreqWeekly:
		// Weekly statistical releases land on Fridays.
		next := nextWeekdayOf(now, time.Friday)
		return &next
	case model.FreqBiWeekly:
		next := nextFortnightly(now)
		return &next
	case model.FreqMonthly:
		next := firstOfMonthsAhead(now, 1)
		return &next
	case model.FreqBiMonthly:
		next := firstOfMonthsAhead(now, 2)
		return &next
	case model.FreqQuarterly:
		next := nextQuarterStart(now)
		return &next
	case model.FreqAnnual:
		next := time.Date(now.Year()+1, time.January, 1, 0, 0, 0, 0, now.Location())
		return &next
	default:
		return nil
	}
}

func isPolicyRate(ind model.Indicator) bool {
	return ind.Category == model.CategoryMonetary && ind.Frequency == model.FreqBiMonthly
}

func nextMPCDecision(now time.Time) time.Time {
	for _, month := range mpcMonths {
		candidate := time.Date(now.Year(), month, mpcDecisionDay, 0, 0, 0, 0, now.Location())
		if candidate.After(now) {
			return candidate
		}
	}
	return time.Date(now.Year()+1, mpcMonths[0], mpcDecisionDay, 0, 0, 0, 0, now.Location())
}

func nextWeekday(now time.Time) time.Time {
	next := now.AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return truncateDay(next)
}

func nextWeekdayOf(now time.Time, day time.Weekday) time.Time {
	next := now.AddDate(0, 0, 1)
	for next.Weekday() != day {
		next = next.AddDate(0, 0, 1)
	}
	return truncateDay(next)
}

// Fortnightly releases follow the mid-month split: the day after the 15th,
// or the first of the next month once past it.
func nextFortnightly(now time.Time) time.Time {
	if now.Day() < 16 {
		return time.Date(now.Year(), now.Month(), 16, 0, 0, 0, 0, now.Location())
	}
	return firstOfMonthsAhead(now, 1)
}

func firstOfMonthsAhead(now time.Time, months int) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, months, 0)
}

func nextQuarterStart(now time.Time) time.Time {
	month := now.Month()
	quarterStart := time.Month(((int(month)-1)/3)*3 + 1)
	return time.Date(now.Year(), quarterStart, 1, 0, 0, 0, 0, now.Location()).AddDate(0, 3, 0)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
