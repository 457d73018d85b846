// Package schedule computes loan amortization and interest schedules.
//
// A Schedule maps each monthly period end date of a loan to an amount. For a
// loan issued on date D with a term of N months, the periods are D+1 … D+N
// months. All builders in this package produce schedules over exactly those
// periods so they can be read side by side.
package schedule

import (
	"slices"

	"github.com/mcclellann/lomap/pkg/date"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Schedule maps a period end date to an amount.
type Schedule map[date.Date]decimal.Decimal

// Dates returns the period dates in chronological order.
func (s Schedule) Dates() []date.Date {
	dates := make([]date.Date, 0, len(s))
	for d := range s {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, date.Date.Compare)
	return dates
}

// Last returns the latest period date, or the zero Date for an empty schedule.
func (s Schedule) Last() date.Date {
	var last date.Date
	for d := range s {
		if last.IsZero() || d.After(last) {
			last = d
		}
	}
	return last
}

// Sum adds every amount of the schedule.
func (s Schedule) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, v := range s {
		total = total.Add(v)
	}
	return total
}

// Periods returns the term monthly period end dates following issue.
func Periods(issue date.Date, term int) []date.Date {
	periods := make([]date.Date, term)
	for i := range term {
		periods[i] = issue.AddMonths(i + 1)
	}
	return periods
}

// Payment is a principal repayment actually made on a given day.
type Payment struct {
	Date  date.Date
	Value decimal.Decimal
}

// PrincipalBalance returns the face value minus every recorded payment.
func PrincipalBalance(face decimal.Decimal, payments []Payment) decimal.Decimal {
	balance := face
	for _, p := range payments {
		balance = balance.Sub(p.Value)
	}
	return balance
}
