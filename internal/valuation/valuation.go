// Package valuation prices positions and aggregates them into portfolio
// metrics. Everything here is pure: callers pass in positions, the known
// prices and the clock.
package valuation

import (
	"time"

	"github.com/STTM-NSU/fintrack/internal/model"
	"github.com/STTM-NSU/fintrack/internal/tools"
)

const (
	// AverageMonth is the month length used for accrual. It is not calendar
	// accurate on purpose.
	AverageMonth = time.Duration(30.44 * 24 * float64(time.Hour))

	_monthsInYear = 12
)

// Valuate prices every position. Positions without a known price are kept in
// the output with nil price fields.
func Valuate(positions []model.Position, latest map[string]float64, now time.Time) []model.PositionValuation {
	out := make([]model.PositionValuation, 0, len(positions))
	for _, p := range positions {
		out = append(out, ValuatePosition(p, latest, now))
	}
	return out
}

func ValuatePosition(p model.Position, latest map[string]float64, now time.Time) model.PositionValuation {
	v := model.PositionValuation{
		ID:             p.ID,
		AssetName:      p.AssetName,
		Category:       p.Category,
		Kind:           p.Kind,
		Amount:         p.Amount,
		CostBasisPrice: p.CostBasisPrice,
		InitialTotal:   p.Principal(),
	}

	switch p.Kind {
	case model.Accruing:
		valuateAccruing(&v, p, now)
	default:
		price, ok := latest[p.AssetName]
		if !ok {
			return v
		}
		valuateMarket(&v, p, price)
	}
	return v
}

func valuateMarket(v *model.PositionValuation, p model.Position, price float64) {
	v.CurrentPrice = tools.Ptr(price)
	v.CurrentValue = tools.Ptr(price * p.Amount)
	if p.CostBasisPrice == 0 {
		return
	}
	v.AbsoluteChange = tools.Ptr((price - p.CostBasisPrice) * p.Amount)
	v.PctChange = tools.Ptr((price - p.CostBasisPrice) / p.CostBasisPrice * 100)
}

func valuateAccruing(v *model.PositionValuation, p model.Position, now time.Time) {
	principal := p.Principal()
	months := MonthsHeld(p.PurchaseDate, now)
	accrued := Accrued(principal, rate(p), months/_monthsInYear)
	value := principal + accrued

	v.CurrentValue = tools.Ptr(value)
	v.AbsoluteChange = tools.Ptr(accrued)
	v.MonthsHeld = tools.Ptr(months)
	if p.Amount != 0 {
		v.CurrentPrice = tools.Ptr(value / p.Amount)
	}
	if principal != 0 {
		v.PctChange = tools.Ptr(accrued / principal * 100)
	}
	if p.TermMonths != nil {
		v.MonthsRemaining = tools.Ptr(max(0, float64(*p.TermMonths)-months))
	}
}

// MonthsHeld is the elapsed time in average-length months, never negative.
func MonthsHeld(purchase, now time.Time) float64 {
	if now.Before(purchase) {
		return 0
	}
	return float64(now.Sub(purchase)) / float64(AverageMonth)
}

// Accrued is simple (non-compounding) interest on principal.
func Accrued(principal, annualRatePct, years float64) float64 {
	return principal * (annualRatePct / 100) * years
}

func rate(p model.Position) float64 {
	if p.AnnualRatePct == nil {
		return 0
	}
	return *p.AnnualRatePct
}

// Aggregate sums position values. Unknown values count as zero but every
// position's principal is part of the cost.
func Aggregate(valuations []model.PositionValuation) model.PortfolioMetrics {
	var m model.PortfolioMetrics
	for _, v := range valuations {
		m.TotalCost += v.InitialTotal
		if v.CurrentValue != nil {
			m.TotalValue += *v.CurrentValue
		}
	}
	m.TotalProfitPct = tools.Pct(m.TotalValue-m.TotalCost, m.TotalCost)
	return m
}

// MonthlyGain compares the current value of the portfolio with its value at
// the start of the month. MARKET positions missing either price are left out
// of both sides. Accruing positions use one month less of accrual.
func MonthlyGain(positions []model.Position, latest, monthStart map[string]float64, now time.Time) float64 {
	var totalNow, totalStart float64
	for _, p := range positions {
		switch p.Kind {
		case model.Accruing:
			principal := p.Principal()
			years := MonthsHeld(p.PurchaseDate, now) / _monthsInYear
			totalNow += principal + Accrued(principal, rate(p), years)
			totalStart += principal + Accrued(principal, rate(p), max(0, years-1.0/_monthsInYear))
		default:
			priceNow, okNow := latest[p.AssetName]
			priceStart, okStart := monthStart[p.AssetName]
			if !okNow || !okStart {
				continue
			}
			totalNow += priceNow * p.Amount
			totalStart += priceStart * p.Amount
		}
	}
	return tools.Pct(totalNow-totalStart, totalStart)
}

// MergeByAsset folds rows sharing an asset name into one row. The order of
// first appearance is kept.
func MergeByAsset(valuations []model.PositionValuation) []model.MergedAssetRow {
	idx := make(map[string]int)
	rows := make([]model.MergedAssetRow, 0, len(valuations))
	for _, v := range valuations {
		i, ok := idx[v.AssetName]
		if !ok {
			i = len(rows)
			idx[v.AssetName] = i
			rows = append(rows, model.MergedAssetRow{AssetName: v.AssetName})
		}
		r := &rows[i]
		r.Amount += v.Amount
		r.InitialTotal += v.InitialTotal
		if v.CurrentValue != nil {
			r.CurrentValue += *v.CurrentValue
		}
		if v.AbsoluteChange != nil {
			r.Profit += *v.AbsoluteChange
		}
	}
	for i := range rows {
		rows[i].ProfitPct = tools.Pct(rows[i].Profit, rows[i].InitialTotal)
	}
	return rows
}

// _periodYear matches the year length used for period change of accruing
// positions.
const _periodYear = time.Duration(365.25 * 24 * float64(time.Hour))

// PeriodChange compares the portfolio now with its value at the reference
// date of a window. Returns model.ErrInsufficientData when nothing could be
// priced at the reference date.
func PeriodChange(positions []model.Position, latest, reference map[string]float64, w model.Window, now time.Time) (model.PeriodChange, error) {
	res := model.PeriodChange{Window: w}
	for _, p := range positions {
		switch p.Kind {
		case model.Accruing:
			principal := p.Principal()
			years := 0.0
			if now.After(p.PurchaseDate) {
				years = float64(now.Sub(p.PurchaseDate)) / float64(_periodYear)
			}
			res.TotalNow += principal + Accrued(principal, rate(p), years)
			res.TotalBefore += principal
		default:
			priceNow, okNow := latest[p.AssetName]
			priceBefore, okBefore := reference[p.AssetName]
			if !okNow || !okBefore {
				continue
			}
			res.TotalNow += priceNow * p.Amount
			res.TotalBefore += priceBefore * p.Amount
		}
	}
	if res.TotalBefore == 0 {
		return res, model.ErrInsufficientData
	}
	res.ChangePct = (res.TotalNow - res.TotalBefore) / res.TotalBefore * 100
	return res, nil
}

// FilterCategory returns valuations of one category, compared
// case-insensitively.
func FilterCategory(valuations []model.PositionValuation, category string) []model.PositionValuation {
	want := model.NormalizeCategory(category)
	out := make([]model.PositionValuation, 0, len(valuations))
	for _, v := range valuations {
		if model.NormalizeCategory(v.Category) == want {
			out = append(out, v)
		}
	}
	return out
}
