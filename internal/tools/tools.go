package tools

import (
	"github.com/shopspring/decimal"
)

// HistoryEpsilon is the smallest change of the portfolio total worth recording.
var HistoryEpsilon = decimal.New(1, -2)

// RoundMoney rounds to cents, half away from zero.
func RoundMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func RoundMoneyPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := RoundMoney(*v)
	return &r
}

// Differs reports whether a and b differ by at least one cent.
func Differs(a, b float64) bool {
	diff := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Abs()
	return diff.GreaterThanOrEqual(HistoryEpsilon)
}

// Pct returns part/whole*100 or 0 when whole is zero.
func Pct(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

func Ptr[T any](v T) *T {
	return &v
}
