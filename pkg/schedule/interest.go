package schedule

import (
	"github.com/mcclellann/lomap/pkg/date"
	"github.com/shopspring/decimal"
)

// Interests returns the interest due on each period.
//
// Every month accrues simple interest on the principal outstanding before
// that month's paydown, at the monthly effective rate equivalent to rate
// compounded on period. The monthly interest is carried at compound interest
// to the next interest payment date, where the accumulated amount is due.
// Periods that are not interest payment dates owe nothing.
func Interests(before Schedule, rate decimal.Decimal, period Frequency, frequency Frequency, issue date.Date) Schedule {
	term := len(before)
	monthly := MonthlyEffectiveRate(rate, period)
	growth := decimal.NewFromInt(1).Add(monthly.Div(hundred))

	n := frequency.Months()
	if frequency == AtMaturity {
		n = term
	}

	interests := make(Schedule, term)
	accrued := decimal.Zero
	for i, on := range Periods(issue, term) {
		k := i + 1
		interest := Interest(monthly, before[on])

		// months left until the next interest payment date
		remaining := 0
		if k%n != 0 {
			remaining = n - k%n
		}
		accrued = accrued.Add(interest.Mul(growth.Pow(decimal.NewFromInt(int64(remaining)))))

		if isPaymentPeriod(k, term, frequency) {
			interests[on] = accrued.Round(2)
			accrued = decimal.Zero
		} else {
			interests[on] = decimal.Zero
		}
	}
	return interests
}
