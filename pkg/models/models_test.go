package models

import (
	"testing"

	"github.com/mcclellann/lomap/pkg/date"
	"github.com/mcclellann/lomap/pkg/schedule"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTerms() LoanTerms {
	return LoanTerms{
		FaceValue:                decimal.NewFromInt(12000),
		BankID:                   1,
		IssueDate:                date.MustParse("2026-01-15"),
		Term:                     12,
		PaymentFrequency:         schedule.Monthly,
		InterestRate:             decimal.NewFromInt(12),
		InterestRateType:         schedule.Effective,
		CompoundingPeriod:        schedule.Annually,
		InterestPaymentFrequency: schedule.Quarterly,
	}
}

func TestNormalizeBankName(t *testing.T) {
	assert.Equal(t, "Chase", NormalizeBankName("chase"))
	assert.Equal(t, "Chase", NormalizeBankName("CHASE "))
	assert.Equal(t, "Bank Of America", NormalizeBankName("bank of AMERICA"))
	assert.Equal(t, "O'Neil Bank", NormalizeBankName("o'neil BANK"))
	assert.Equal(t, "Wells-Fargo", NormalizeBankName("wells-fargo"))
	assert.Equal(t, "Bank  Of 3Rd Street", NormalizeBankName("bank  of 3rd street"))

	_, err := NewBank(1, "   ")
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestNewLoan(t *testing.T) {
	loan, err := NewLoan(7, validTerms())
	require.NoError(t, err)
	assert.Equal(t, 7, loan.ID)
	assert.True(t, loan.PrincipalBalance.Equal(decimal.NewFromInt(12000)))
	assert.Equal(t, date.MustParse("2027-01-15"), loan.Maturity())
}

func TestNewLoanValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*LoanTerms)
		want   error
	}{
		{"zero face value", func(lt *LoanTerms) { lt.FaceValue = decimal.Zero }, ErrInvalidRange},
		{"negative term", func(lt *LoanTerms) { lt.Term = -1 }, ErrInvalidRange},
		{"missing issue date", func(lt *LoanTerms) { lt.IssueDate = date.Date{} }, ErrInvalidRange},
		{"rate zero", func(lt *LoanTerms) { lt.InterestRate = decimal.Zero }, ErrInvalidRange},
		{"rate over 100", func(lt *LoanTerms) { lt.InterestRate = decimal.NewFromFloat(100.01) }, ErrInvalidRange},
		{"unknown frequency", func(lt *LoanTerms) { lt.PaymentFrequency = "weekly" }, ErrInvalidRange},
		{"term not divisible", func(lt *LoanTerms) { lt.Term = 7; lt.PaymentFrequency = schedule.Quarterly }, ErrFrequencyMismatch},
		{"interest frequency not divisible", func(lt *LoanTerms) { lt.Term = 10 }, ErrFrequencyMismatch},
		{"effective compounding monthly", func(lt *LoanTerms) { lt.CompoundingPeriod = schedule.Monthly }, ErrRateTypeConflict},
		{"nominal compounding annually", func(lt *LoanTerms) { lt.InterestRateType = schedule.Nominal }, ErrRateTypeConflict},
		{"unknown rate type", func(lt *LoanTerms) { lt.InterestRateType = "floating" }, ErrInvalidRange},
		{"compounding at maturity", func(lt *LoanTerms) {
			lt.InterestRateType = schedule.Nominal
			lt.CompoundingPeriod = schedule.AtMaturity
		}, ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms := validTerms()
			tt.modify(&terms)
			_, err := NewLoan(1, terms)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewLoanEffectiveDefaultsToAnnually(t *testing.T) {
	terms := validTerms()
	terms.CompoundingPeriod = ""
	loan, err := NewLoan(1, terms)
	require.NoError(t, err)
	assert.Equal(t, schedule.Annually, loan.CompoundingPeriod)

	terms.Term = 7
	terms.PaymentFrequency = schedule.AtMaturity
	terms.InterestPaymentFrequency = schedule.AtMaturity
	_, err = NewLoan(1, terms)
	assert.NoError(t, err)
}

func TestLoanRefresh(t *testing.T) {
	loan, err := NewLoan(1, validTerms())
	require.NoError(t, err)

	payments := []*Payment{
		{ID: 1, LoanID: 1, Value: decimal.NewFromInt(1000), Date: date.MustParse("2026-02-10")},
		{ID: 2, LoanID: 1, Value: decimal.NewFromInt(500), Date: date.MustParse("2026-03-10")},
	}
	loan.Refresh(payments, date.MustParse("2026-06-20"))

	assert.True(t, loan.PrincipalBalance.Equal(decimal.NewFromInt(10500)))
	assert.True(t, loan.Scheduled.Amortization.Sum().Equal(decimal.NewFromInt(12000)))
	assert.True(t, loan.Actual.Amortization.Sum().Equal(decimal.NewFromInt(12000)))
	assert.True(t, loan.Actual.Incurred.Sum().Equal(decimal.NewFromInt(1500)))
	assert.True(t, loan.Scheduled.PrincipalAfter[loan.Maturity()].IsZero())
	assert.Len(t, loan.Actual.Interest, 12)
}

func TestNewPayment(t *testing.T) {
	loan, err := NewLoan(3, validTerms())
	require.NoError(t, err)
	loan.PrincipalBalance = decimal.NewFromInt(5000)
	today := date.MustParse("2026-06-20")

	p, err := NewPayment(9, loan, decimal.NewFromInt(5000), date.MustParse("2026-06-20"), today)
	require.NoError(t, err)
	assert.Equal(t, 3, p.LoanID)

	tests := []struct {
		name  string
		value int64
		on    string
		want  error
	}{
		{"zero value", 0, "2026-03-01", ErrInvalidRange},
		{"above balance", 5001, "2026-03-01", ErrPayoffExceeded},
		{"future date", 100, "2026-06-21", ErrDateOutOfBounds},
		{"on issue date", 100, "2026-01-15", ErrDateOutOfBounds},
		{"before issue date", 100, "2025-12-31", ErrDateOutOfBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPayment(1, loan, decimal.NewFromInt(tt.value), date.MustParse(tt.on), today)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// after maturity, even with a later today
	_, err = NewPayment(1, loan, decimal.NewFromInt(10), date.MustParse("2027-01-16"), date.MustParse("2027-06-01"))
	assert.ErrorIs(t, err, ErrDateOutOfBounds)
	_, err = NewPayment(1, loan, decimal.NewFromInt(10), date.MustParse("2027-01-15"), date.MustParse("2027-06-01"))
	assert.NoError(t, err)
}
