package schedule

import (
	"github.com/mcclellann/lomap/pkg/date"
	"github.com/shopspring/decimal"
)

// Amortizations returns the scheduled principal paydown of each period.
//
// The face value is split evenly, rounded to cents half to even, over the
// payment events:
// one every Months(frequency) months, or a single one on the last period
// when the loan is repaid at maturity. Other periods are zero.
func Amortizations(face decimal.Decimal, term int, issue date.Date, frequency Frequency) Schedule {
	n := 1
	if frequency != AtMaturity {
		n = term / frequency.Months()
	}
	payment := face.Div(decimal.NewFromInt(int64(n))).RoundBank(2)

	amortizations := make(Schedule, term)
	for i, on := range Periods(issue, term) {
		if isPaymentPeriod(i+1, term, frequency) {
			amortizations[on] = payment
		} else {
			amortizations[on] = decimal.Zero
		}
	}
	return amortizations
}

// isPaymentPeriod reports whether the k-th period (1-based) of a term is a
// payment date for the frequency.
func isPaymentPeriod(k, term int, frequency Frequency) bool {
	if frequency == AtMaturity {
		return k == term
	}
	return k%frequency.Months() == 0
}

// Principals walks the periods in order and returns the outstanding principal
// before and after each period's paydown, rounded to cents.
func Principals(face decimal.Decimal, term int, flow Schedule, issue date.Date) (before, after Schedule) {
	before = make(Schedule, term)
	after = make(Schedule, term)
	principal := face
	for _, on := range Periods(issue, term) {
		paid := flow[on]
		before[on] = principal.Round(2)
		principal = principal.Sub(paid)
		after[on] = principal.Round(2)
	}
	return before, after
}
