package billing

import (
	"fmt"
	"time"

	"github.com/touchline/academy/core"
)

func intervalMonths(interval string) int {
	switch interval {
	case IntervalQuarterly:
		return 3
	case IntervalYearly:
		return 12
	}
	return 1
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// addMonths moves d by the given number of months, keeping the anchor day of month
// or the last day of the month when the anchor does not exist in it (Jan 31 -> Feb 28 -> Mar 31).
func addMonths(d core.Date, months, anchorDay int) core.Date {
	first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	day := anchorDay
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return core.NewDate(first.Year(), first.Month(), day)
}

// NextBillingDate returns the start of the period following the one starting on current.
func NextBillingDate(s Subscription, current core.Date) core.Date {
	anchor := s.StartDate.Day()
	if s.StartDate.IsZero() {
		anchor = current.Day()
	}
	return addMonths(current, intervalMonths(s.Interval), anchor)
}

// PeriodEnd returns the last day of the period starting on start.
func PeriodEnd(s Subscription, start core.Date) core.Date {
	return NextBillingDate(s, start).AddDate(0, 0, -1)
}

func periodDescription(s Subscription, start core.Date) string {
	return fmt.Sprintf("%s, %s to %s", s.PlanName, start, PeriodEnd(s, start))
}

// FormatNumber renders a document number such as INV-2024-0007.
func FormatNumber(prefix string, year, seq int) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, seq)
}
