package model

import "time"

type Position struct {
	ID             string         `json:"id" db:"id"`
	AssetName      string         `json:"assetName" db:"asset_name"`
	Category       string         `json:"categoryName" db:"category"`
	Kind           InstrumentKind `json:"kind" db:"kind"`
	Amount         float64        `json:"amount" db:"amount"`
	CostBasisPrice float64        `json:"initialPrice" db:"cost_basis_price"`
	PurchaseDate   time.Time      `json:"purchaseDate" db:"purchase_date"`
	AnnualRatePct  *float64       `json:"couponRate,omitempty" db:"annual_rate_pct"`
	TermMonths     *int           `json:"investmentLength,omitempty" db:"term_months"`
}

func (p Position) GetUID() string {
	return p.ID
}

// Class is only meaningful for MARKET positions.
func (p Position) Class() AssetClass {
	return ClassifyCategory(p.Category)
}

func (p Position) Principal() float64 {
	return p.CostBasisPrice * p.Amount
}

// PositionValuation is one row of the overview. Nil pointers mean the data
// needed to compute the field is not available yet.
type PositionValuation struct {
	ID              string         `json:"id"`
	AssetName       string         `json:"asset"`
	Category        string         `json:"category"`
	Kind            InstrumentKind `json:"kind"`
	Amount          float64        `json:"amount"`
	CostBasisPrice  float64        `json:"initialPrice"`
	InitialTotal    float64        `json:"initialTotal"`
	CurrentPrice    *float64       `json:"currentPrice"`
	CurrentValue    *float64       `json:"value"`
	AbsoluteChange  *float64       `json:"profit"`
	PctChange       *float64       `json:"profitPct"`
	MonthsHeld      *float64       `json:"monthsHeld,omitempty"`
	MonthsRemaining *float64       `json:"monthsRemaining,omitempty"`
}

type PortfolioMetrics struct {
	TotalValue     float64 `json:"totalValue"`
	TotalCost      float64 `json:"totalCost"`
	TotalProfitPct float64 `json:"totalProfitPct"`
}

type PortfolioStats struct {
	TotalValue     float64 `json:"totalValue"`
	MonthlyGain    float64 `json:"monthlyGain"`
	TotalProfitPct float64 `json:"totalProfit"`
}

type MergedAssetRow struct {
	AssetName    string  `json:"asset"`
	Amount       float64 `json:"amount"`
	InitialTotal float64 `json:"initialTotal"`
	CurrentValue float64 `json:"value"`
	Profit       float64 `json:"profit"`
	ProfitPct    float64 `json:"profitPct"`
}

type PeriodChange struct {
	Window      Window  `json:"period"`
	TotalBefore float64 `json:"totalBefore"`
	TotalNow    float64 `json:"totalNow"`
	ChangePct   float64 `json:"changePct"`
}

type HistoryPoint struct {
	TotalValue float64   `json:"totalValue" db:"total_value"`
	Timestamp  time.Time `json:"date" db:"ts"`
}

type Category struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// PurchaseLot is one buy recorded against a position.
type PurchaseLot struct {
	ID         string    `json:"id" db:"id"`
	PositionID string    `json:"investmentId" db:"position_id"`
	Date       time.Time `json:"date" db:"purchased_at"`
	Quantity   float64   `json:"quantity" db:"quantity"`
	Price      float64   `json:"purchasePrice" db:"price"`
}
