package store

import (
	"github.com/mcclellann/lomap/pkg/models"
)

// Storage defines the repository operations for banks, loans and payments.
//
// Create methods assign the next free id when the record's ID is zero and keep
// it otherwise. Getters return copies; mutate them and call the matching
// Update method to store the change. Missing records are reported with the
// models.ErrUnknown* kinds.
type Storage interface {
	CreateBank(bank *models.Bank) error
	GetBank(id int) (*models.Bank, error)
	GetBankByName(name string) (*models.Bank, error)
	UpdateBank(bank *models.Bank) error
	DeleteBank(id int) error
	GetAllBanks() ([]*models.Bank, error)

	CreateLoan(loan *models.Loan) error
	GetLoan(id int) (*models.Loan, error)
	UpdateLoan(loan *models.Loan) error
	DeleteLoan(id int) error
	GetAllLoans() ([]*models.Loan, error)
	GetLoansForBank(bankID int) ([]*models.Loan, error)

	CreatePayment(payment *models.Payment) error
	GetPayment(id int) (*models.Payment, error)
	UpdatePayment(payment *models.Payment) error
	DeletePayment(id int) error
	GetAllPayments() ([]*models.Payment, error)
	GetPaymentsForLoan(loanID int) ([]*models.Payment, error)

	Close() error
}
