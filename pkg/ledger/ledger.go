package ledger

import (
	"fmt"
	"sync"

	"github.com/mcclellann/lomap/pkg/date"
	"github.com/mcclellann/lomap/pkg/models"
	"github.com/mcclellann/lomap/pkg/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger handles the business logic for banks, loans and payments.
//
// Every public method holds the ledger lock, so callers on different
// goroutines never observe a half applied change. Loans are returned with
// both projections computed for the ledger's current day.
type Ledger struct {
	storage store.Storage
	log     *zap.Logger
	now     func() date.Date
	mu      sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger mutations are reported to.
func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithClock replaces date.Today as the source of the current day.
func WithClock(now func() date.Date) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage, opts ...Option) *Ledger {
	l := &Ledger{
		storage: s,
		log:     zap.NewNop(),
		now:     date.Today,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Rebuild recomputes every loan from its stored terms and payments. It is
// meant to run once after loading, and fails on the first loan whose
// payments exceed its face value or fall outside its life span.
func (l *Ledger) Rebuild() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	loans, err := l.storage.GetAllLoans()
	if err != nil {
		return err
	}
	var payments int
	for _, loan := range loans {
		ps, err := l.refresh(loan)
		if err != nil {
			return err
		}
		if err := checkPayments(loan, ps, l.now()); err != nil {
			return fmt.Errorf("loan %d: %w", loan.ID, err)
		}
		payments += len(ps)
	}
	l.log.Info("ledger rebuilt", zap.Int("loans", len(loans)), zap.Int("payments", payments))
	return nil
}

// refresh recomputes both projections of a loan from its stored payments.
func (l *Ledger) refresh(loan *models.Loan) ([]*models.Payment, error) {
	payments, err := l.storage.GetPaymentsForLoan(loan.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments for loan %d: %w", loan.ID, err)
	}
	loan.Refresh(payments, l.now())
	return payments, nil
}

func (l *Ledger) loan(id int) (*models.Loan, []*models.Payment, error) {
	loan, err := l.storage.GetLoan(id)
	if err != nil {
		return nil, nil, err
	}
	payments, err := l.refresh(loan)
	if err != nil {
		return nil, nil, err
	}
	return loan, payments, nil
}

// RegisterBank adds a bank. Names are normalized and must be unique.
func (l *Ledger) RegisterBank(name string) (*models.Bank, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	bank, err := models.NewBank(0, name)
	if err != nil {
		return nil, err
	}
	if err := l.storage.CreateBank(bank); err != nil {
		return nil, fmt.Errorf("failed to store bank: %w", err)
	}
	l.log.Info("bank registered", zap.Int("bank_id", bank.ID), zap.String("name", bank.Name))
	return bank, nil
}

// RenameBank changes a bank's name. Loans keep referring to it by id.
func (l *Ledger) RenameBank(id int, name string) (*models.Bank, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	bank, err := models.NewBank(id, name)
	if err != nil {
		return nil, err
	}
	if err := l.storage.UpdateBank(bank); err != nil {
		return nil, fmt.Errorf("failed to rename bank: %w", err)
	}
	l.log.Info("bank renamed", zap.Int("bank_id", bank.ID), zap.String("name", bank.Name))
	return bank, nil
}

// DeleteBank removes a bank that has no loans.
func (l *Ledger) DeleteBank(id int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.storage.DeleteBank(id); err != nil {
		return fmt.Errorf("failed to delete bank: %w", err)
	}
	l.log.Info("bank deleted", zap.Int("bank_id", id))
	return nil
}

// GetBank retrieves a bank by its ID.
func (l *Ledger) GetBank(id int) (*models.Bank, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.storage.GetBank(id)
}

// GetBankByName retrieves a bank by name, in any casing.
func (l *Ledger) GetBankByName(name string) (*models.Bank, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.storage.GetBankByName(name)
}

// GetAllBanks retrieves all banks.
func (l *Ledger) GetAllBanks() ([]*models.Bank, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.storage.GetAllBanks()
}

// CreateLoan validates the terms and stores a new loan.
func (l *Ledger) CreateLoan(terms models.LoanTerms) (*models.Loan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.storage.GetBank(terms.BankID); err != nil {
		return nil, err
	}
	loan, err := models.NewLoan(0, terms)
	if err != nil {
		return nil, err
	}
	if err := l.storage.CreateLoan(loan); err != nil {
		return nil, fmt.Errorf("failed to store loan: %w", err)
	}
	loan.Refresh(nil, l.now())

	l.log.Info("loan created",
		zap.Int("loan_id", loan.ID),
		zap.Int("bank_id", loan.BankID),
		zap.String("face_value", loan.FaceValue.String()))
	return loan, nil
}

// UpdateLoan replaces a loan's terms. The new terms must still hold every
// recorded payment: the face value covers their sum, the issue date precedes
// the first and the maturity is not before the last.
func (l *Ledger) UpdateLoan(id int, terms models.LoanTerms) (*models.Loan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.storage.GetLoan(id); err != nil {
		return nil, err
	}
	if _, err := l.storage.GetBank(terms.BankID); err != nil {
		return nil, err
	}
	loan, err := models.NewLoan(id, terms)
	if err != nil {
		return nil, err
	}
	payments, err := l.storage.GetPaymentsForLoan(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments for loan %d: %w", id, err)
	}
	if err := checkPayments(loan, payments, l.now()); err != nil {
		return nil, err
	}
	if err := l.storage.UpdateLoan(loan); err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}
	loan.Refresh(payments, l.now())

	l.log.Info("loan updated", zap.Int("loan_id", loan.ID), zap.Int("bank_id", loan.BankID))
	return loan, nil
}

func checkPayments(loan *models.Loan, payments []*models.Payment, today date.Date) error {
	if len(payments) == 0 {
		return nil
	}
	paid := decimal.Zero
	first, last := payments[0].Date, payments[0].Date
	for _, p := range payments {
		paid = paid.Add(p.Value)
		if p.Date.Before(first) {
			first = p.Date
		}
		if p.Date.After(last) {
			last = p.Date
		}
	}
	if loan.FaceValue.LessThan(paid) {
		return fmt.Errorf("face value (%s) can not be less than the payments made (%s): %w",
			loan.FaceValue.StringFixed(2), paid.StringFixed(2), models.ErrPayoffExceeded)
	}
	if !loan.IssueDate.Before(first) {
		return fmt.Errorf("issue date (%s) must be before the first payment (%s): %w",
			loan.IssueDate, first, models.ErrDateOutOfBounds)
	}
	if loan.Maturity().Before(last) {
		return fmt.Errorf("maturity (%s) can not be before the last payment (%s): %w",
			loan.Maturity(), last, models.ErrDateOutOfBounds)
	}
	if last.After(today) {
		return fmt.Errorf("payment date (%s) can not be after today (%s): %w", last, today, models.ErrDateOutOfBounds)
	}
	return nil
}

// DeleteLoan removes a loan that has no payments.
func (l *Ledger) DeleteLoan(id int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.storage.DeleteLoan(id); err != nil {
		return fmt.Errorf("failed to delete loan: %w", err)
	}
	l.log.Info("loan deleted", zap.Int("loan_id", id))
	return nil
}

// GetLoan retrieves a loan with its projections.
func (l *Ledger) GetLoan(id int) (*models.Loan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	loan, _, err := l.loan(id)
	return loan, err
}

// GetAllLoans retrieves all loans with their projections.
func (l *Ledger) GetAllLoans() ([]*models.Loan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	loans, err := l.storage.GetAllLoans()
	if err != nil {
		return nil, err
	}
	for _, loan := range loans {
		if _, err := l.refresh(loan); err != nil {
			return nil, err
		}
	}
	return loans, nil
}

// RecordPayment records a principal repayment made on the given day.
func (l *Ledger) RecordPayment(loanID int, value decimal.Decimal, on date.Date) (*models.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	loan, _, err := l.loan(loanID)
	if err != nil {
		return nil, err
	}
	payment, err := models.NewPayment(0, loan, value, on, l.now())
	if err != nil {
		return nil, err
	}
	if err := l.storage.CreatePayment(payment); err != nil {
		return nil, fmt.Errorf("failed to store payment: %w", err)
	}

	l.log.Info("payment recorded",
		zap.Int("payment_id", payment.ID),
		zap.Int("loan_id", loanID),
		zap.String("value", value.String()),
		zap.Stringer("date", on))
	return payment, nil
}

// UpdatePayment changes the value and date of a payment. The new value is
// checked against the loan balance as it would be without this payment.
func (l *Ledger) UpdatePayment(id int, value decimal.Decimal, on date.Date) (*models.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	old, err := l.storage.GetPayment(id)
	if err != nil {
		return nil, err
	}
	loan, payments, err := l.loan(old.LoanID)
	if err != nil {
		return nil, err
	}
	others := make([]*models.Payment, 0, len(payments))
	for _, p := range payments {
		if p.ID != id {
			others = append(others, p)
		}
	}
	loan.RefreshActual(others, l.now())

	payment, err := models.NewPayment(id, loan, value, on, l.now())
	if err != nil {
		return nil, err
	}
	if err := l.storage.UpdatePayment(payment); err != nil {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	l.log.Info("payment updated",
		zap.Int("payment_id", id),
		zap.Int("loan_id", payment.LoanID),
		zap.String("value", value.String()),
		zap.Stringer("date", on))
	return payment, nil
}

// DeletePayment removes a payment.
func (l *Ledger) DeletePayment(id int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.storage.DeletePayment(id); err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	l.log.Info("payment deleted", zap.Int("payment_id", id))
	return nil
}

// GetPayment retrieves a payment by its ID.
func (l *Ledger) GetPayment(id int) (*models.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.storage.GetPayment(id)
}

// GetAllPayments retrieves all payments.
func (l *Ledger) GetAllPayments() ([]*models.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.storage.GetAllPayments()
}

// GetPaymentsForLoan retrieves the payments of a loan, which must exist.
func (l *Ledger) GetPaymentsForLoan(loanID int) ([]*models.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.storage.GetLoan(loanID); err != nil {
		return nil, err
	}
	return l.storage.GetPaymentsForLoan(loanID)
}
