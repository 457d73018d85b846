package schedule

import (
	"math"

	"github.com/shopspring/decimal"
)

// MonthlyEffectiveRate converts an annual rate, in percent, compounded on the
// given period into the equivalent effective monthly rate, in percent rounded
// to 4 places.
//
//	periodRate = rate / PerYear(period)
//	monthly    = (1 + periodRate/100)^(1/Months(period)) - 1
//
// The fractional power is taken in float64 and the result brought back to
// decimal.
func MonthlyEffectiveRate(rate decimal.Decimal, period Frequency) decimal.Decimal {
	periodRate := rate.InexactFloat64() / float64(period.PerYear())
	monthly := math.Pow(1+periodRate/100, 1/float64(period.Months())) - 1
	return decimal.NewFromFloat(monthly * 100).Round(4)
}

// Interest returns the interest on value at rate percent, rounded to cents.
func Interest(rate, value decimal.Decimal) decimal.Decimal {
	return rate.Mul(value).Div(hundred).Round(2)
}
