package models

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/mcclellann/lomap/pkg/date"
	"github.com/mcclellann/lomap/pkg/schedule"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var maxRate = decimal.NewFromInt(100)

type Bank struct {
	ID   int    `json:"id"`
	Name string `json:"name"` // Title-cased, unique
}

// NormalizeBankName title-cases every run of letters of a bank name so
// "chase", "CHASE" and "Chase" compare equal. Any non-letter starts a new
// word: "o'neil bank" becomes "O'Neil Bank".
func NormalizeBankName(name string) string {
	name = strings.TrimSpace(name)
	caser := cases.Title(language.Und)
	var b strings.Builder
	word := -1
	for i, r := range name {
		if unicode.IsLetter(r) {
			if word < 0 {
				word = i
			}
			continue
		}
		if word >= 0 {
			b.WriteString(caser.String(name[word:i]))
			word = -1
		}
		b.WriteRune(r)
	}
	if word >= 0 {
		b.WriteString(caser.String(name[word:]))
	}
	return b.String()
}

// NewBank returns a bank with a normalized name. Uniqueness is checked by the
// ledger, which sees every bank.
func NewBank(id int, name string) (*Bank, error) {
	n := NormalizeBankName(name)
	if n == "" {
		return nil, fmt.Errorf("bank name is required: %w", ErrInvalidRange)
	}
	return &Bank{ID: id, Name: n}, nil
}

// LoanTerms are the user supplied attributes of a loan.
type LoanTerms struct {
	FaceValue                decimal.Decimal    `json:"face_value"`
	BankID                   int                `json:"bank_id"`
	IssueDate                date.Date          `json:"issue_date"`
	Term                     int                `json:"term_months"`
	PaymentFrequency         schedule.Frequency `json:"payment_frequency"`
	InterestRate             decimal.Decimal    `json:"interest_rate"`              // Annual, in percent
	InterestRateType         schedule.RateType  `json:"interest_rate_type"`
	CompoundingPeriod        schedule.Frequency `json:"compounding_period"`         // Always annually for effective rates
	InterestPaymentFrequency schedule.Frequency `json:"interest_payment_frequency"`
}

// Validate checks every term against the others. An effective rate with no
// compounding period is given "annually".
func (t *LoanTerms) Validate() error {
	if !t.FaceValue.IsPositive() {
		return fmt.Errorf("face value must be positive, got %s: %w", t.FaceValue, ErrInvalidRange)
	}
	if t.IssueDate.IsZero() {
		return fmt.Errorf("issue date is required: %w", ErrInvalidRange)
	}
	if t.Term <= 0 {
		return fmt.Errorf("loan term must be a positive number of months, got %d: %w", t.Term, ErrInvalidRange)
	}
	if err := checkFrequency("payment", t.Term, t.PaymentFrequency); err != nil {
		return err
	}
	if !t.InterestRate.IsPositive() || t.InterestRate.GreaterThan(maxRate) {
		return fmt.Errorf("interest rate must be greater than 0 and at most 100, got %s: %w", t.InterestRate, ErrInvalidRange)
	}
	if !t.InterestRateType.Valid() {
		return fmt.Errorf("unknown interest rate type %q: %w", t.InterestRateType, ErrInvalidRange)
	}
	if t.InterestRateType == schedule.Effective && t.CompoundingPeriod == "" {
		t.CompoundingPeriod = schedule.Annually
	}
	if !t.CompoundingPeriod.Compounding() {
		return fmt.Errorf("unknown compounding period %q: %w", t.CompoundingPeriod, ErrInvalidRange)
	}
	if (t.InterestRateType == schedule.Effective) != (t.CompoundingPeriod == schedule.Annually) {
		return fmt.Errorf("%s rate can not compound %s: %w", t.InterestRateType, t.CompoundingPeriod, ErrRateTypeConflict)
	}
	return checkFrequency("interest payment", t.Term, t.InterestPaymentFrequency)
}

func checkFrequency(what string, term int, f schedule.Frequency) error {
	if !f.Valid() {
		return fmt.Errorf("invalid %s frequency %q: %w", what, f, ErrInvalidRange)
	}
	if !schedule.CheckFrequency(term, f) {
		return fmt.Errorf("loan term (%d) not divisible by months in %s frequency %s (%d): %w",
			term, what, f, f.Months(), ErrFrequencyMismatch)
	}
	return nil
}

// Loan is the loan aggregate: its terms plus the projections derived from
// them. Scheduled and Actual are only valid after Refresh.
type Loan struct {
	ID int `json:"id"`
	LoanTerms
	PrincipalBalance decimal.Decimal   `json:"principal_balance"`
	Scheduled        schedule.CashFlow `json:"-"`
	Actual           schedule.CashFlow `json:"-"`
}

// NewLoan validates the terms and returns a loan whose balance is the full
// face value.
func NewLoan(id int, terms LoanTerms) (*Loan, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	return &Loan{ID: id, LoanTerms: terms, PrincipalBalance: terms.FaceValue}, nil
}

// Maturity is the date the last period ends.
func (l *Loan) Maturity() date.Date { return l.IssueDate.AddMonths(l.Term) }

func (l *Loan) scheduleTerms() schedule.Terms {
	return schedule.Terms{
		FaceValue:                l.FaceValue,
		IssueDate:                l.IssueDate,
		Term:                     l.Term,
		PaymentFrequency:         l.PaymentFrequency,
		InterestRate:             l.InterestRate,
		CompoundingPeriod:        l.CompoundingPeriod,
		InterestPaymentFrequency: l.InterestPaymentFrequency,
	}
}

// RefreshScheduled recomputes the scheduled projection from the loan terms.
func (l *Loan) RefreshScheduled() {
	l.Scheduled = schedule.Scheduled(l.scheduleTerms())
}

// RefreshActual recomputes the balance and the actual projection from the
// loan's payments. The scheduled projection must be current.
func (l *Loan) RefreshActual(payments []*Payment, today date.Date) {
	flows := make([]schedule.Payment, len(payments))
	for i, p := range payments {
		flows[i] = schedule.Payment{Date: p.Date, Value: p.Value}
	}
	l.PrincipalBalance = schedule.PrincipalBalance(l.FaceValue, flows)
	l.Actual = schedule.Actual(l.scheduleTerms(), l.Scheduled, flows, today)
}

// Refresh recomputes both projections.
func (l *Loan) Refresh(payments []*Payment, today date.Date) {
	l.RefreshScheduled()
	l.RefreshActual(payments, today)
}

// Payment is a principal repayment recorded against a loan.
type Payment struct {
	ID     int             `json:"id"`
	LoanID int             `json:"loan_id"`
	Value  decimal.Decimal `json:"value"`
	Date   date.Date       `json:"payment_date"`
}

// NewPayment validates a payment of value on the given day against the loan's
// current balance and life span.
func NewPayment(id int, loan *Loan, value decimal.Decimal, on, today date.Date) (*Payment, error) {
	if !value.IsPositive() {
		return nil, fmt.Errorf("payment value must be positive, got %s: %w", value, ErrInvalidRange)
	}
	if value.GreaterThan(loan.PrincipalBalance) {
		return nil, fmt.Errorf("payment value (%s) can not be greater than loan balance (%s): %w",
			value.StringFixed(2), loan.PrincipalBalance.StringFixed(2), ErrPayoffExceeded)
	}
	if on.After(today) {
		return nil, fmt.Errorf("payment date (%s) can not be after today (%s): %w", on, today, ErrDateOutOfBounds)
	}
	if !on.After(loan.IssueDate) || on.After(loan.Maturity()) {
		return nil, fmt.Errorf("payment date (%s) must be after issue date (%s) and not after maturity (%s): %w",
			on, loan.IssueDate, loan.Maturity(), ErrDateOutOfBounds)
	}
	return &Payment{ID: id, LoanID: loan.ID, Value: value, Date: on}, nil
}
