package ledger

import (
	"github.com/mcclellann/lomap/pkg/date"
	"github.com/mcclellann/lomap/pkg/models"
	"github.com/mcclellann/lomap/pkg/schedule"
	"github.com/shopspring/decimal"
)

// BankView is the read-only report row of a bank.
type BankView struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Loans int    `json:"loans"`
}

// LoanView is the read-only report row of a loan.
type LoanView struct {
	ID                       int                `json:"id"`
	FaceValue                decimal.Decimal    `json:"face_value"`
	PrincipalBalance         decimal.Decimal    `json:"principal_balance"`
	BankID                   int                `json:"bank_id"`
	BankName                 string             `json:"bank_name"`
	IssueDate                date.Date          `json:"issue_date"`
	Maturity                 date.Date          `json:"maturity"`
	Term                     int                `json:"term_months"`
	PaymentFrequency         schedule.Frequency `json:"payment_frequency"`
	InterestRate             decimal.Decimal    `json:"interest_rate"`
	InterestRateType         schedule.RateType  `json:"interest_rate_type"`
	CompoundingPeriod        schedule.Frequency `json:"compounding_period"`
	InterestPaymentFrequency schedule.Frequency `json:"interest_payment_frequency"`
}

// PaymentView is the read-only report row of a payment.
type PaymentView struct {
	ID       int             `json:"id"`
	LoanID   int             `json:"loan_id"`
	BankName string          `json:"bank_name"`
	Value    decimal.Decimal `json:"value"`
	Date     date.Date       `json:"payment_date"`
}

// CashFlowRow puts the scheduled and actual projections of one period side
// by side.
type CashFlowRow struct {
	Date                  date.Date       `json:"date"`
	ScheduledPrincipal    decimal.Decimal `json:"scheduled_principal"`
	ScheduledAmortization decimal.Decimal `json:"scheduled_amortization"`
	ScheduledInterest     decimal.Decimal `json:"scheduled_interest"`
	ActualPrincipal       decimal.Decimal `json:"actual_principal"`
	IncurredAmortization  decimal.Decimal `json:"incurred_amortization"`
	ActualAmortization    decimal.Decimal `json:"actual_amortization"`
	ActualInterest        decimal.Decimal `json:"actual_interest"`
}

// NewLoanView builds the report row of a refreshed loan.
func NewLoanView(loan *models.Loan, bank *models.Bank) LoanView {
	return LoanView{
		ID:                       loan.ID,
		FaceValue:                loan.FaceValue,
		PrincipalBalance:         loan.PrincipalBalance,
		BankID:                   bank.ID,
		BankName:                 bank.Name,
		IssueDate:                loan.IssueDate,
		Maturity:                 loan.Maturity(),
		Term:                     loan.Term,
		PaymentFrequency:         loan.PaymentFrequency,
		InterestRate:             loan.InterestRate,
		InterestRateType:         loan.InterestRateType,
		CompoundingPeriod:        loan.CompoundingPeriod,
		InterestPaymentFrequency: loan.InterestPaymentFrequency,
	}
}

// CashFlowRows lists the periods of a refreshed loan in date order.
func CashFlowRows(loan *models.Loan) []CashFlowRow {
	sch, act := loan.Scheduled, loan.Actual
	dates := sch.Amortization.Dates()
	rows := make([]CashFlowRow, len(dates))
	for i, d := range dates {
		rows[i] = CashFlowRow{
			Date:                  d,
			ScheduledPrincipal:    sch.PrincipalBefore[d],
			ScheduledAmortization: sch.Amortization[d],
			ScheduledInterest:     sch.Interest[d],
			ActualPrincipal:       act.PrincipalBefore[d],
			IncurredAmortization:  act.Incurred[d],
			ActualAmortization:    act.Amortization[d],
			ActualInterest:        act.Interest[d],
		}
	}
	return rows
}

// BankViews reports every bank with its number of loans.
func (l *Ledger) BankViews() ([]BankView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	banks, err := l.storage.GetAllBanks()
	if err != nil {
		return nil, err
	}
	views := make([]BankView, len(banks))
	for i, b := range banks {
		loans, err := l.storage.GetLoansForBank(b.ID)
		if err != nil {
			return nil, err
		}
		views[i] = BankView{ID: b.ID, Name: b.Name, Loans: len(loans)}
	}
	return views, nil
}

// LoanView reports a single loan.
func (l *Ledger) LoanView(id int) (LoanView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	loan, _, err := l.loan(id)
	if err != nil {
		return LoanView{}, err
	}
	bank, err := l.storage.GetBank(loan.BankID)
	if err != nil {
		return LoanView{}, err
	}
	return NewLoanView(loan, bank), nil
}

// LoanViews reports every loan.
func (l *Ledger) LoanViews() ([]LoanView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	loans, err := l.storage.GetAllLoans()
	if err != nil {
		return nil, err
	}
	views := make([]LoanView, len(loans))
	for i, loan := range loans {
		if _, err := l.refresh(loan); err != nil {
			return nil, err
		}
		bank, err := l.storage.GetBank(loan.BankID)
		if err != nil {
			return nil, err
		}
		views[i] = NewLoanView(loan, bank)
	}
	return views, nil
}

// PaymentViews reports the payments of one loan, or of every loan when
// loanID is zero.
func (l *Ledger) PaymentViews(loanID int) ([]PaymentView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var payments []*models.Payment
	var err error
	if loanID == 0 {
		payments, err = l.storage.GetAllPayments()
	} else {
		if _, err := l.storage.GetLoan(loanID); err != nil {
			return nil, err
		}
		payments, err = l.storage.GetPaymentsForLoan(loanID)
	}
	if err != nil {
		return nil, err
	}

	views := make([]PaymentView, len(payments))
	for i, p := range payments {
		loan, err := l.storage.GetLoan(p.LoanID)
		if err != nil {
			return nil, err
		}
		bank, err := l.storage.GetBank(loan.BankID)
		if err != nil {
			return nil, err
		}
		views[i] = PaymentView{ID: p.ID, LoanID: p.LoanID, BankName: bank.Name, Value: p.Value, Date: p.Date}
	}
	return views, nil
}

// CashFlow reports the scheduled and actual projections of a loan.
func (l *Ledger) CashFlow(loanID int) ([]CashFlowRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	loan, _, err := l.loan(loanID)
	if err != nil {
		return nil, err
	}
	return CashFlowRows(loan), nil
}
