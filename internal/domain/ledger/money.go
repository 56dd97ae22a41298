package ledger

import (
	"github.com/shopspring/decimal"
)

const (
	// MoneyPlaces is the scale computed document amounts are rounded to
	MoneyPlaces int32 = 2
	// AmountPlaces is the storage scale of every amount column
	AmountPlaces int32 = 4
)

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds half away from zero to MoneyPlaces
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// PercentOf returns rate percent of base, rounded to MoneyPlaces
func PercentOf(base, ratePercent decimal.Decimal) decimal.Decimal {
	return RoundMoney(base.Mul(ratePercent).Div(hundred))
}

// fitsScale reports whether d can be stored without losing precision
func fitsScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(AmountPlaces))
}

func validRatePercent(rate decimal.Decimal) bool {
	return !rate.IsNegative() && rate.LessThanOrEqual(hundred)
}
