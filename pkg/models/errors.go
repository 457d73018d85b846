package models

import "errors"

// Error kinds. Every validation failure returned by this module wraps exactly
// one of them; match with errors.Is.
var (
	ErrDuplicateBank        = errors.New("bank already exists")
	ErrUnknownBank          = errors.New("bank not found")
	ErrUnknownLoan          = errors.New("loan not found")
	ErrUnknownPayment       = errors.New("payment not found")
	ErrInvalidRange         = errors.New("value out of range")
	ErrFrequencyMismatch    = errors.New("frequency does not match loan term")
	ErrRateTypeConflict     = errors.New("compounding period conflicts with rate type")
	ErrDateOutOfBounds      = errors.New("date out of bounds")
	ErrPayoffExceeded       = errors.New("payment exceeds loan balance")
	ErrReferentialIntegrity = errors.New("record is still referenced")
)
