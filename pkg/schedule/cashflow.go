package schedule

import (
	"github.com/mcclellann/lomap/pkg/date"
	"github.com/shopspring/decimal"
)

// Terms are the loan attributes the schedules are derived from.
type Terms struct {
	FaceValue                decimal.Decimal
	IssueDate                date.Date
	Term                     int
	PaymentFrequency         Frequency
	InterestRate             decimal.Decimal
	CompoundingPeriod        Frequency
	InterestPaymentFrequency Frequency
}

// CashFlow is a per-period projection of a loan.
type CashFlow struct {
	Amortization    Schedule `json:"amortization"`
	PrincipalBefore Schedule `json:"principal_before"`
	PrincipalAfter  Schedule `json:"principal_after"`
	Interest        Schedule `json:"interest"`
	// Incurred holds the amortizations actually paid; only set on actual
	// projections.
	Incurred Schedule `json:"incurred,omitempty"`
}

// Scheduled projects the loan as if every paydown happens on schedule.
func Scheduled(t Terms) CashFlow {
	amortizations := Amortizations(t.FaceValue, t.Term, t.IssueDate, t.PaymentFrequency)
	return project(t, amortizations)
}

// Actual projects the loan from the payments made so far, reconciled against
// the scheduled projection.
func Actual(t Terms, scheduled CashFlow, payments []Payment, today date.Date) CashFlow {
	balance := PrincipalBalance(t.FaceValue, payments)
	projected, incurred := Reconcile(t.IssueDate, scheduled.Amortization, payments, balance, scheduled.PrincipalAfter, today)
	cf := project(t, projected)
	cf.Incurred = incurred
	return cf
}

func project(t Terms, amortizations Schedule) CashFlow {
	before, after := Principals(t.FaceValue, t.Term, amortizations, t.IssueDate)
	return CashFlow{
		Amortization:    amortizations,
		PrincipalBefore: before,
		PrincipalAfter:  after,
		Interest:        Interests(before, t.InterestRate, t.CompoundingPeriod, t.InterestPaymentFrequency, t.IssueDate),
	}
}
