package store

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/mcclellann/lomap/pkg/models"
)

// MemoryStore keeps every record in memory, indexed by id.
type MemoryStore struct {
	mu       sync.RWMutex
	banks    map[int]models.Bank
	loans    map[int]models.Loan
	payments map[int]models.Payment
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		banks:    make(map[int]models.Bank),
		loans:    make(map[int]models.Loan),
		payments: make(map[int]models.Payment),
	}
}

// nextID returns the id following the highest one in use.
func nextID[T any](m map[int]T) int {
	next := 1
	for id := range m {
		if id >= next {
			next = id + 1
		}
	}
	return next
}

func assignID[T any](m map[int]T, id *int, kind string) error {
	if *id == 0 {
		*id = nextID(m)
		return nil
	}
	if *id < 0 {
		return fmt.Errorf("invalid %s id %d: %w", kind, *id, models.ErrInvalidRange)
	}
	if _, ok := m[*id]; ok {
		return fmt.Errorf("%s id %d already in use: %w", kind, *id, models.ErrInvalidRange)
	}
	return nil
}

func sorted[T any](m map[int]T, keep func(T) bool) []*T {
	out := []*T{}
	for _, id := range slices.Sorted(maps.Keys(m)) {
		v := m[id]
		if keep == nil || keep(v) {
			out = append(out, &v)
		}
	}
	return out
}

// CreateBank inserts a new bank.
func (s *MemoryStore) CreateBank(bank *models.Bank) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.banks {
		if b.Name == bank.Name {
			return fmt.Errorf("bank %q: %w", bank.Name, models.ErrDuplicateBank)
		}
	}
	if err := assignID(s.banks, &bank.ID, "bank"); err != nil {
		return err
	}
	s.banks[bank.ID] = *bank
	return nil
}

// GetBank retrieves a bank by its ID.
func (s *MemoryStore) GetBank(id int) (*models.Bank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.banks[id]
	if !ok {
		return nil, fmt.Errorf("bank %d: %w", id, models.ErrUnknownBank)
	}
	return &b, nil
}

// GetBankByName retrieves a bank by its normalized name.
func (s *MemoryStore) GetBankByName(name string) (*models.Bank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := models.NormalizeBankName(name)
	for _, b := range s.banks {
		if b.Name == n {
			return &b, nil
		}
	}
	return nil, fmt.Errorf("bank %q: %w", n, models.ErrUnknownBank)
}

// UpdateBank updates an existing bank.
func (s *MemoryStore) UpdateBank(bank *models.Bank) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.banks[bank.ID]; !ok {
		return fmt.Errorf("bank %d: %w", bank.ID, models.ErrUnknownBank)
	}
	for _, b := range s.banks {
		if b.ID != bank.ID && b.Name == bank.Name {
			return fmt.Errorf("bank %q: %w", bank.Name, models.ErrDuplicateBank)
		}
	}
	s.banks[bank.ID] = *bank
	return nil
}

// DeleteBank removes a bank that no loan refers to.
func (s *MemoryStore) DeleteBank(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.banks[id]; !ok {
		return fmt.Errorf("bank %d: %w", id, models.ErrUnknownBank)
	}
	for _, l := range s.loans {
		if l.BankID == id {
			return fmt.Errorf("bank %d has loans: %w", id, models.ErrReferentialIntegrity)
		}
	}
	delete(s.banks, id)
	return nil
}

// GetAllBanks retrieves all banks ordered by id.
func (s *MemoryStore) GetAllBanks() ([]*models.Bank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(s.banks, nil), nil
}

// CreateLoan inserts a new loan. Its bank must exist.
func (s *MemoryStore) CreateLoan(loan *models.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.banks[loan.BankID]; !ok {
		return fmt.Errorf("bank %d: %w", loan.BankID, models.ErrUnknownBank)
	}
	if err := assignID(s.loans, &loan.ID, "loan"); err != nil {
		return err
	}
	s.loans[loan.ID] = *loan
	return nil
}

// GetLoan retrieves a loan by its ID.
func (s *MemoryStore) GetLoan(id int) (*models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.loans[id]
	if !ok {
		return nil, fmt.Errorf("loan %d: %w", id, models.ErrUnknownLoan)
	}
	return &l, nil
}

// UpdateLoan updates an existing loan.
func (s *MemoryStore) UpdateLoan(loan *models.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loans[loan.ID]; !ok {
		return fmt.Errorf("loan %d: %w", loan.ID, models.ErrUnknownLoan)
	}
	if _, ok := s.banks[loan.BankID]; !ok {
		return fmt.Errorf("bank %d: %w", loan.BankID, models.ErrUnknownBank)
	}
	s.loans[loan.ID] = *loan
	return nil
}

// DeleteLoan removes a loan that has no payments.
func (s *MemoryStore) DeleteLoan(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loans[id]; !ok {
		return fmt.Errorf("loan %d: %w", id, models.ErrUnknownLoan)
	}
	for _, p := range s.payments {
		if p.LoanID == id {
			return fmt.Errorf("loan %d has payments: %w", id, models.ErrReferentialIntegrity)
		}
	}
	delete(s.loans, id)
	return nil
}

// GetAllLoans retrieves all loans ordered by id.
func (s *MemoryStore) GetAllLoans() ([]*models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(s.loans, nil), nil
}

// GetLoansForBank retrieves the loans granted by a bank.
func (s *MemoryStore) GetLoansForBank(bankID int) ([]*models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(s.loans, func(l models.Loan) bool { return l.BankID == bankID }), nil
}

// CreatePayment inserts a new payment. Its loan must exist.
func (s *MemoryStore) CreatePayment(payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loans[payment.LoanID]; !ok {
		return fmt.Errorf("loan %d: %w", payment.LoanID, models.ErrUnknownLoan)
	}
	if err := assignID(s.payments, &payment.ID, "payment"); err != nil {
		return err
	}
	s.payments[payment.ID] = *payment
	return nil
}

// GetPayment retrieves a payment by its ID.
func (s *MemoryStore) GetPayment(id int) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %d: %w", id, models.ErrUnknownPayment)
	}
	return &p, nil
}

// UpdatePayment updates an existing payment. The owning loan can not change.
func (s *MemoryStore) UpdatePayment(payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.payments[payment.ID]
	if !ok {
		return fmt.Errorf("payment %d: %w", payment.ID, models.ErrUnknownPayment)
	}
	if old.LoanID != payment.LoanID {
		return fmt.Errorf("payment %d belongs to loan %d: %w", payment.ID, old.LoanID, models.ErrReferentialIntegrity)
	}
	s.payments[payment.ID] = *payment
	return nil
}

// DeletePayment removes a payment.
func (s *MemoryStore) DeletePayment(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[id]; !ok {
		return fmt.Errorf("payment %d: %w", id, models.ErrUnknownPayment)
	}
	delete(s.payments, id)
	return nil
}

// GetAllPayments retrieves all payments ordered by id.
func (s *MemoryStore) GetAllPayments() ([]*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(s.payments, nil), nil
}

// GetPaymentsForLoan retrieves the payments of a loan ordered by id.
func (s *MemoryStore) GetPaymentsForLoan(loanID int) ([]*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(s.payments, func(p models.Payment) bool { return p.LoanID == loanID }), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
