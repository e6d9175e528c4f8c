package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/touchline/academy/core"
)

func TestNextBillingDate(t *testing.T) {
	d := core.NewDate
	tests := []struct {
		name     string
		interval string
		start    core.Date
		current  core.Date
		want     core.Date
	}{
		{"monthly", IntervalMonthly, d(2024, time.January, 15), d(2024, time.January, 15), d(2024, time.February, 15)},
		{"monthly month end", IntervalMonthly, d(2024, time.January, 31), d(2024, time.January, 31), d(2024, time.February, 29)},
		{"monthly back to anchor", IntervalMonthly, d(2024, time.January, 31), d(2024, time.February, 29), d(2024, time.March, 31)},
		{"monthly over the year", IntervalMonthly, d(2023, time.December, 1), d(2023, time.December, 1), d(2024, time.January, 1)},
		{"quarterly", IntervalQuarterly, d(2024, time.November, 30), d(2024, time.November, 30), d(2025, time.February, 28)},
		{"yearly leap day", IntervalYearly, d(2024, time.February, 29), d(2024, time.February, 29), d(2025, time.February, 28)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Subscription{Interval: tt.interval, StartDate: tt.start}
			assert.Equal(t, tt.want.String(), NextBillingDate(s, tt.current).String())
		})
	}
}

func TestPeriodDescription(t *testing.T) {
	s := Subscription{PlanName: "U12 monthly", Interval: IntervalMonthly, StartDate: core.NewDate(2024, time.March, 1)}
	assert.Equal(t, "U12 monthly, 2024-03-01 to 2024-03-31", periodDescription(s, s.StartDate))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "INV-2024-0007", FormatNumber(InvoicePrefix, 2024, 7))
	assert.Equal(t, "PAY-2025-12345", FormatNumber(PaymentPrefix, 2025, 12345))
}
