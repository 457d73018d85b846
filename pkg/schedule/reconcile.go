package schedule

import (
	"github.com/mcclellann/lomap/pkg/date"
	"github.com/shopspring/decimal"
)

// Reconcile merges the payments actually made on a loan with its scheduled
// amortizations and returns two schedules over the same periods:
//
//   - projected: what was paid in past periods, followed by the paydowns still
//     expected. The first scheduled period that is not in the past absorbs a
//     single catch-up amount bringing the balance back to the scheduled
//     principal; later periods resume the original schedule.
//   - incurred: only what was actually paid, zero for periods to come.
//
// Once today reaches the last period, every period reports what was paid and
// the last one is expected to settle the whole remaining balance.
func Reconcile(issue date.Date, scheduled Schedule, payments []Payment, balance decimal.Decimal, scheduledAfter Schedule, today date.Date) (projected, incurred Schedule) {
	term := len(scheduled)
	projected = make(Schedule, term)
	incurred = make(Schedule, term)

	if !today.Before(scheduled.Last()) {
		for i, on := range Periods(issue, term) {
			paid := paidIn(payments, issue.AddMonths(i), on)
			incurred[on] = paid
			if i == term-1 {
				projected[on] = balance
			} else {
				projected[on] = paid
			}
		}
		return projected, incurred
	}

	caughtUp := false
	for i, on := range Periods(issue, term) {
		start := issue.AddMonths(i)
		paid := paidIn(payments, start, on)
		due := balance.Sub(scheduledAfter[on]).Round(1)
		amortizing := !scheduled[on].Round(0).IsZero()

		switch {
		case on.Before(today):
			projected[on] = paid
			incurred[on] = paid

		case start.Before(today):
			// the period holds today
			incurred[on] = paid
			if amortizing && due.IsPositive() && !caughtUp {
				projected[on] = paid.Add(due)
				caughtUp = true
			} else {
				projected[on] = paid
			}

		default:
			incurred[on] = decimal.Zero
			switch {
			case caughtUp:
				projected[on] = scheduled[on]
			case amortizing && due.IsPositive():
				projected[on] = due
				caughtUp = true
			default:
				projected[on] = decimal.Zero
			}
		}
	}
	return projected, incurred
}

// paidIn sums the payments made in the period (start, end].
func paidIn(payments []Payment, start, end date.Date) decimal.Decimal {
	paid := decimal.Zero
	for _, p := range payments {
		if p.Date.After(start) && !p.Date.After(end) {
			paid = paid.Add(p.Value)
		}
	}
	return paid
}
