package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/mcclellann/lomap/pkg/date"
	"github.com/mcclellann/lomap/pkg/models"
	"github.com/mcclellann/lomap/pkg/schedule"
	"github.com/shopspring/decimal"
)

// File names inside the data directory.
const (
	BanksFile    = "banks.csv"
	LoansFile    = "loans.csv"
	PaymentsFile = "payments.csv"
)

var (
	bankHeader    = []string{"id", "name"}
	loanHeader    = []string{"id", "face_value", "bank_name", "issue_date", "term_months", "payment_frequency", "interest_rate", "interest_rate_type", "compounding_period", "interest_payment_frequency"}
	paymentHeader = []string{"id", "loan_id", "value", "payment_date"}
)

// CSVStore is a MemoryStore backed by three CSV files. Every mutation
// rewrites the affected files; when that fails the in-memory change is
// undone.
type CSVStore struct {
	*MemoryStore
	dir string
}

// NewCSVStore loads the CSV files found in dir, creating the directory when
// it does not exist. Missing files are treated as empty collections.
func NewCSVStore(dir string) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create data directory: %w", err)
	}
	s := &CSVStore{MemoryStore: NewMemoryStore(), dir: dir}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("could not load data from %s: %w", dir, err)
	}
	return s, nil
}

func (s *CSVStore) load() error {
	if err := s.readFile(BanksFile, bankHeader, s.loadBank); err != nil {
		return err
	}
	if err := s.readFile(LoansFile, loanHeader, s.loadLoan); err != nil {
		return err
	}
	return s.readFile(PaymentsFile, paymentHeader, s.loadPayment)
}

func (s *CSVStore) loadBank(row []string) error {
	id, err := strconv.Atoi(row[0])
	if err != nil {
		return fmt.Errorf("invalid bank id %q: %w", row[0], err)
	}
	bank, err := models.NewBank(id, row[1])
	if err != nil {
		return err
	}
	return s.MemoryStore.CreateBank(bank)
}

func (s *CSVStore) loadLoan(row []string) error {
	id, err := strconv.Atoi(row[0])
	if err != nil {
		return fmt.Errorf("invalid loan id %q: %w", row[0], err)
	}
	bank, err := s.MemoryStore.GetBankByName(row[2])
	if err != nil {
		return err
	}
	var terms models.LoanTerms
	terms.BankID = bank.ID
	if terms.FaceValue, err = decimal.NewFromString(row[1]); err != nil {
		return fmt.Errorf("invalid face value %q: %w", row[1], err)
	}
	if terms.IssueDate, err = date.Parse(row[3]); err != nil {
		return err
	}
	if terms.Term, err = strconv.Atoi(row[4]); err != nil {
		return fmt.Errorf("invalid term %q: %w", row[4], err)
	}
	if terms.PaymentFrequency, err = schedule.ParseFrequency(row[5]); err != nil {
		return err
	}
	if terms.InterestRate, err = decimal.NewFromString(row[6]); err != nil {
		return fmt.Errorf("invalid interest rate %q: %w", row[6], err)
	}
	if terms.InterestRateType, err = schedule.ParseRateType(row[7]); err != nil {
		return err
	}
	if terms.CompoundingPeriod, err = schedule.ParseFrequency(row[8]); err != nil {
		return err
	}
	if terms.InterestPaymentFrequency, err = schedule.ParseFrequency(row[9]); err != nil {
		return err
	}
	loan, err := models.NewLoan(id, terms)
	if err != nil {
		return err
	}
	return s.MemoryStore.CreateLoan(loan)
}

func (s *CSVStore) loadPayment(row []string) error {
	id, err := strconv.Atoi(row[0])
	if err != nil {
		return fmt.Errorf("invalid payment id %q: %w", row[0], err)
	}
	loanID, err := strconv.Atoi(row[1])
	if err != nil {
		return fmt.Errorf("invalid loan id %q: %w", row[1], err)
	}
	value, err := decimal.NewFromString(row[2])
	if err != nil {
		return fmt.Errorf("invalid payment value %q: %w", row[2], err)
	}
	if !value.IsPositive() {
		return fmt.Errorf("payment %d value %s: %w", id, value, models.ErrInvalidRange)
	}
	on, err := date.Parse(row[3])
	if err != nil {
		return err
	}
	return s.MemoryStore.CreatePayment(&models.Payment{ID: id, LoanID: loanID, Value: value, Date: on})
}

// readFile feeds every data row of a CSV file to fn.
func (s *CSVStore) readFile(name string, header []string, fn func([]string) error) error {
	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)
	got, err := r.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if !slices.Equal(got, header) {
		return fmt.Errorf("%s: unexpected header %v, want %v", name, got, header)
	}
	for {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := fn(row); err != nil {
			line, _ := r.FieldPos(0)
			return fmt.Errorf("%s line %d: %w", name, line, err)
		}
	}
}

// writeFile replaces a CSV file atomically.
func (s *CSVStore) writeFile(name string, header []string, rows [][]string) error {
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	w.Write(header)
	w.WriteAll(rows)
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

func (s *CSVStore) flushBanks() error {
	banks, _ := s.MemoryStore.GetAllBanks()
	rows := make([][]string, len(banks))
	for i, b := range banks {
		rows[i] = []string{strconv.Itoa(b.ID), b.Name}
	}
	return s.writeFile(BanksFile, bankHeader, rows)
}

func (s *CSVStore) flushLoans() error {
	loans, _ := s.MemoryStore.GetAllLoans()
	rows := make([][]string, len(loans))
	for i, l := range loans {
		bank, err := s.MemoryStore.GetBank(l.BankID)
		if err != nil {
			return err
		}
		rows[i] = []string{
			strconv.Itoa(l.ID),
			l.FaceValue.String(),
			bank.Name,
			l.IssueDate.String(),
			strconv.Itoa(l.Term),
			string(l.PaymentFrequency),
			l.InterestRate.String(),
			string(l.InterestRateType),
			string(l.CompoundingPeriod),
			string(l.InterestPaymentFrequency),
		}
	}
	return s.writeFile(LoansFile, loanHeader, rows)
}

func (s *CSVStore) flushPayments() error {
	payments, _ := s.MemoryStore.GetAllPayments()
	rows := make([][]string, len(payments))
	for i, p := range payments {
		rows[i] = []string{strconv.Itoa(p.ID), strconv.Itoa(p.LoanID), p.Value.String(), p.Date.String()}
	}
	return s.writeFile(PaymentsFile, paymentHeader, rows)
}

// CreateBank inserts a bank and rewrites the banks file.
func (s *CSVStore) CreateBank(bank *models.Bank) error {
	if err := s.MemoryStore.CreateBank(bank); err != nil {
		return err
	}
	if err := s.flushBanks(); err != nil {
		s.MemoryStore.DeleteBank(bank.ID)
		return err
	}
	return nil
}

// UpdateBank updates a bank and rewrites the banks and loans files, since
// loans refer to their bank by name.
func (s *CSVStore) UpdateBank(bank *models.Bank) error {
	prev, err := s.MemoryStore.GetBank(bank.ID)
	if err != nil {
		return err
	}
	if err := s.MemoryStore.UpdateBank(bank); err != nil {
		return err
	}
	if err := s.flushBanks(); err != nil {
		s.MemoryStore.UpdateBank(prev)
		return err
	}
	if err := s.flushLoans(); err != nil {
		s.MemoryStore.UpdateBank(prev)
		s.flushBanks()
		return err
	}
	return nil
}

// DeleteBank removes a bank and rewrites the banks file.
func (s *CSVStore) DeleteBank(id int) error {
	prev, err := s.MemoryStore.GetBank(id)
	if err != nil {
		return err
	}
	if err := s.MemoryStore.DeleteBank(id); err != nil {
		return err
	}
	if err := s.flushBanks(); err != nil {
		s.MemoryStore.CreateBank(prev)
		return err
	}
	return nil
}

// CreateLoan inserts a loan and rewrites the loans file.
func (s *CSVStore) CreateLoan(loan *models.Loan) error {
	if err := s.MemoryStore.CreateLoan(loan); err != nil {
		return err
	}
	if err := s.flushLoans(); err != nil {
		s.MemoryStore.DeleteLoan(loan.ID)
		return err
	}
	return nil
}

// UpdateLoan updates a loan and rewrites the loans file.
func (s *CSVStore) UpdateLoan(loan *models.Loan) error {
	prev, err := s.MemoryStore.GetLoan(loan.ID)
	if err != nil {
		return err
	}
	if err := s.MemoryStore.UpdateLoan(loan); err != nil {
		return err
	}
	if err := s.flushLoans(); err != nil {
		s.MemoryStore.UpdateLoan(prev)
		return err
	}
	return nil
}

// DeleteLoan removes a loan and rewrites the loans file.
func (s *CSVStore) DeleteLoan(id int) error {
	prev, err := s.MemoryStore.GetLoan(id)
	if err != nil {
		return err
	}
	if err := s.MemoryStore.DeleteLoan(id); err != nil {
		return err
	}
	if err := s.flushLoans(); err != nil {
		s.MemoryStore.CreateLoan(prev)
		return err
	}
	return nil
}

// CreatePayment inserts a payment and rewrites the payments file.
func (s *CSVStore) CreatePayment(payment *models.Payment) error {
	if err := s.MemoryStore.CreatePayment(payment); err != nil {
		return err
	}
	if err := s.flushPayments(); err != nil {
		s.MemoryStore.DeletePayment(payment.ID)
		return err
	}
	return nil
}

// UpdatePayment updates a payment and rewrites the payments file.
func (s *CSVStore) UpdatePayment(payment *models.Payment) error {
	prev, err := s.MemoryStore.GetPayment(payment.ID)
	if err != nil {
		return err
	}
	if err := s.MemoryStore.UpdatePayment(payment); err != nil {
		return err
	}
	if err := s.flushPayments(); err != nil {
		s.MemoryStore.UpdatePayment(prev)
		return err
	}
	return nil
}

// DeletePayment removes a payment and rewrites the payments file.
func (s *CSVStore) DeletePayment(id int) error {
	prev, err := s.MemoryStore.GetPayment(id)
	if err != nil {
		return err
	}
	if err := s.MemoryStore.DeletePayment(id); err != nil {
		return err
	}
	if err := s.flushPayments(); err != nil {
		s.MemoryStore.CreatePayment(prev)
		return err
	}
	return nil
}

var _ Storage = (*CSVStore)(nil)
var _ Storage = (*MemoryStore)(nil)
