package schedule

import (
	"fmt"
	"strings"
)

// Frequency is the cadence of principal paydowns, interest payments or rate
// compounding.
type Frequency string

const (
	Monthly      Frequency = "monthly"
	BiMonthly    Frequency = "bi-monthly"
	Quarterly    Frequency = "quarterly"
	SemiAnnually Frequency = "semi-annually"
	Annually     Frequency = "annually"
	AtMaturity   Frequency = "at maturity"
)

// Frequencies lists the accepted payment frequencies.
var Frequencies = []Frequency{Monthly, BiMonthly, Quarterly, SemiAnnually, Annually, AtMaturity}

// CompoundingPeriods lists the periods a nominal rate may compound on.
var CompoundingPeriods = []Frequency{Monthly, BiMonthly, Quarterly, SemiAnnually, Annually}

var months = map[Frequency]int{
	Monthly:      1,
	BiMonthly:    2,
	Quarterly:    3,
	SemiAnnually: 6,
	Annually:     12,
}

// Months returns the number of months in one period, or 0 for AtMaturity and
// unknown values.
func (f Frequency) Months() int { return months[f] }

// PerYear returns how many periods fit in a year, or 0 for AtMaturity.
func (f Frequency) PerYear() int {
	if m := f.Months(); m > 0 {
		return 12 / m
	}
	return 0
}

// Valid reports whether f is one of the accepted payment frequencies.
func (f Frequency) Valid() bool {
	_, ok := months[f]
	return ok || f == AtMaturity
}

// Compounding reports whether f can be used as a compounding period.
func (f Frequency) Compounding() bool {
	_, ok := months[f]
	return ok
}

// ParseFrequency reads a frequency case-insensitively.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("unknown frequency %q", s)
	}
	return f, nil
}

// CheckFrequency reports whether a loan of term months can be paid at
// frequency f, i.e. the term is a whole number of periods.
func CheckFrequency(term int, f Frequency) bool {
	if f == AtMaturity {
		return true
	}
	m := f.Months()
	if m == 0 {
		return false
	}
	return term%m == 0
}

// RateType tells whether an interest rate is effective annual or nominal.
type RateType string

const (
	Effective RateType = "effective"
	Nominal   RateType = "nominal"
)

// RateTypes lists the accepted rate types.
var RateTypes = []RateType{Effective, Nominal}

func (t RateType) Valid() bool { return t == Effective || t == Nominal }

// ParseRateType reads a rate type case-insensitively.
func ParseRateType(s string) (RateType, error) {
	t := RateType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown interest rate type %q", s)
	}
	return t, nil
}
