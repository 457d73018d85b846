package schedule

import (
	"fmt"
	"math"
	"testing"

	"github.com/mcclellann/lomap/pkg/date"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) bool {
	t.Helper()
	if dec(want).Equal(got) {
		return true
	}
	return assert.Fail(t, fmt.Sprintf("want %s, got %s", want, got), msgAndArgs...)
}

func TestCheckFrequency(t *testing.T) {
	assert.True(t, CheckFrequency(6, SemiAnnually))
	assert.False(t, CheckFrequency(7, Quarterly))
	assert.True(t, CheckFrequency(7, AtMaturity))
	assert.True(t, CheckFrequency(7, Monthly))
	assert.False(t, CheckFrequency(12, Frequency("weekly")))
}

func TestParseFrequency(t *testing.T) {
	f, err := ParseFrequency(" Semi-Annually ")
	require.NoError(t, err)
	assert.Equal(t, SemiAnnually, f)

	f, err = ParseFrequency("AT MATURITY")
	require.NoError(t, err)
	assert.Equal(t, AtMaturity, f)
	assert.False(t, f.Compounding())

	_, err = ParseFrequency("weekly")
	assert.Error(t, err)

	rt, err := ParseRateType("Nominal")
	require.NoError(t, err)
	assert.Equal(t, Nominal, rt)
}

func TestMonthlyEffectiveRate(t *testing.T) {
	assertDecimal(t, "0.2494", MonthlyEffectiveRate(dec("3.0"), Quarterly))
	assertDecimal(t, "0.9489", MonthlyEffectiveRate(dec("12"), Annually))

	// an annually compounded rate converts with the plain twelfth root
	for _, r := range []float64{1, 5.5, 12, 100} {
		want := decimal.NewFromFloat((math.Pow(1+r/100, 1.0/12) - 1) * 100).Round(4)
		assertDecimal(t, want.String(), MonthlyEffectiveRate(decimal.NewFromFloat(r), Annually), "rate %v", r)
	}

	// monthly compounding is already monthly
	assertDecimal(t, "1", MonthlyEffectiveRate(dec("12"), Monthly))
}

func TestInterest(t *testing.T) {
	assertDecimal(t, "1.00", Interest(dec("1.0"), dec("100.0")))
	assertDecimal(t, "113.87", Interest(dec("0.9489"), dec("12000")))
}

func TestAmortizations(t *testing.T) {
	issue := date.MustParse("2025-01-15")

	monthly := Amortizations(dec("12000"), 12, issue, Monthly)
	require.Len(t, monthly, 12)
	for _, on := range Periods(issue, 12) {
		assertDecimal(t, "1000", monthly[on], "period %s", on)
	}

	quarterly := Amortizations(dec("12000"), 12, issue, Quarterly)
	require.Len(t, quarterly, 12)
	for i, on := range Periods(issue, 12) {
		if (i+1)%3 == 0 {
			assertDecimal(t, "3000", quarterly[on], "period %d", i+1)
		} else {
			assertDecimal(t, "0", quarterly[on], "period %d", i+1)
		}
	}

	atMaturity := Amortizations(dec("12000"), 12, issue, AtMaturity)
	assertDecimal(t, "12000", atMaturity[date.MustParse("2026-01-15")])
	assertDecimal(t, "12000", atMaturity.Sum())
	assert.Equal(t, date.MustParse("2026-01-15"), atMaturity.Last())
}

func TestAmortizationsRoundHalfToEven(t *testing.T) {
	issue := date.MustParse("2025-01-15")

	// 7777 / 8 = 972.125
	s := Amortizations(dec("7777"), 8, issue, Monthly)
	for _, on := range Periods(issue, 8) {
		assertDecimal(t, "972.12", s[on], "period %s", on)
	}
	_, after := Principals(dec("7777"), 8, s, issue)
	assertDecimal(t, "0.04", after[s.Last()])

	// 1000.10 / 4 = 250.025
	q := Amortizations(dec("1000.10"), 12, issue, Quarterly)
	assertDecimal(t, "250.02", q[date.MustParse("2025-04-15")])
}

func TestAmortizationsSumToFaceValue(t *testing.T) {
	issue := date.MustParse("2024-03-31")
	tests := []struct {
		face      string
		term      int
		frequency Frequency
	}{
		{"1000", 3, Monthly},
		{"250000", 360, Monthly},
		{"10000", 24, BiMonthly},
		{"7777.77", 18, SemiAnnually},
		{"5000", 60, Annually},
		{"100", 7, AtMaturity},
	}
	for _, tt := range tests {
		s := Amortizations(dec(tt.face), tt.term, issue, tt.frequency)
		require.Len(t, s, tt.term)
		tolerance := decimal.NewFromInt(int64(tt.term)).Mul(dec("0.01"))
		diff := s.Sum().Sub(dec(tt.face)).Abs()
		assert.True(t, diff.LessThanOrEqual(tolerance), "%s over %d %s: sum %s", tt.face, tt.term, tt.frequency, s.Sum())
	}
}

func TestPeriodsClampToMonthEnd(t *testing.T) {
	periods := Periods(date.MustParse("2024-01-31"), 3)
	assert.Equal(t, []date.Date{
		date.MustParse("2024-02-29"),
		date.MustParse("2024-03-31"),
		date.MustParse("2024-04-30"),
	}, periods)
}

func TestPrincipals(t *testing.T) {
	issue := date.MustParse("2025-01-15")
	flow := Amortizations(dec("12000"), 12, issue, Monthly)
	before, after := Principals(dec("12000"), 12, flow, issue)

	periods := Periods(issue, 12)
	assertDecimal(t, "12000", before[periods[0]])
	assertDecimal(t, "11000", after[periods[0]])
	assertDecimal(t, "0", after[periods[11]])

	for _, on := range periods {
		assert.True(t, after[on].Equal(before[on].Sub(flow[on])), "period %s", on)
	}
	assert.Equal(t, periods, before.Dates())
}

func TestPrincipalBalance(t *testing.T) {
	assertDecimal(t, "12000", PrincipalBalance(dec("12000"), nil))
	assertDecimal(t, "9500.5", PrincipalBalance(dec("12000"), []Payment{
		{Date: date.MustParse("2025-02-01"), Value: dec("2000")},
		{Date: date.MustParse("2025-03-01"), Value: dec("499.5")},
	}))
}

func TestInterestsMonthly(t *testing.T) {
	issue := date.MustParse("2025-01-15")
	flow := Amortizations(dec("12000"), 12, issue, Monthly)
	before, _ := Principals(dec("12000"), 12, flow, issue)

	interests := Interests(before, dec("12"), Annually, Monthly, issue)
	periods := Periods(issue, 12)
	assertDecimal(t, "113.87", interests[periods[0]])
	assertDecimal(t, "104.38", interests[periods[1]])
	assertDecimal(t, "9.49", interests[periods[11]])
}

func TestInterestsCompoundToPaymentDate(t *testing.T) {
	issue := date.MustParse("2025-01-15")
	flow := Amortizations(dec("10000"), 3, issue, AtMaturity)
	before, _ := Principals(dec("10000"), 3, flow, issue)

	interests := Interests(before, dec("12"), Annually, Quarterly, issue)
	periods := Periods(issue, 3)
	assertDecimal(t, "0", interests[periods[0]])
	assertDecimal(t, "0", interests[periods[1]])
	// 94.89 * (1.009489^2 + 1.009489 + 1)
	assertDecimal(t, "287.38", interests[periods[2]])

	atMaturity := Interests(before, dec("12"), Annually, AtMaturity, issue)
	assertDecimal(t, "287.38", atMaturity[periods[2]])
	assertDecimal(t, "287.38", atMaturity.Sum())
}
