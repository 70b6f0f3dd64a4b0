// Package model defines the core domain types shared across the trading
// engine. All monetary values use shopspring/decimal, never float64 for
// money. Share quantities are whole numbers (int64).
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide is the direction of an order.
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// OrderStatus is the terminal state of an execution attempt. Only
// COMPLETED orders are ever journaled; FAILED exists for API
// compatibility with callers that render order history.
type OrderStatus string

const (
	StatusCompleted OrderStatus = "COMPLETED"
	StatusFailed    OrderStatus = "FAILED"
)

// MoneyPrecision is the decimal precision of every stored monetary
// aggregate (cash, cost basis, P&L). Intermediate computation keeps
// full precision; rounding happens once, at the point of storage.
const MoneyPrecision = 2

// RoundMoney rounds a monetary amount to the stored precision.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPrecision)
}

// Account is one user's cash and aggregate investment state.
// Mutated only through the execution engine, never by callers.
type Account struct {
	UserID           string          `json:"user_id" db:"user_id"`
	Cash             decimal.Decimal `json:"cash" db:"cash"`
	TotalInvestment  decimal.Decimal `json:"total_investment" db:"total_investment"`
	TotalRealizedPnL decimal.Decimal `json:"total_realized_pnl" db:"total_realized_pnl"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// Position is one user's holding in one symbol. At most one row exists
// per (user, symbol); a fully sold position is deleted, never kept as a
// zero-quantity row.
//
// AveragePrice is kept at full decimal precision so that
// CostBasis == Quantity * AveragePrice holds without drift; the
// monetary aggregates are rounded at storage.
type Position struct {
	UserID       string          `json:"user_id" db:"user_id"`
	Symbol       string          `json:"symbol" db:"symbol"`
	Quantity     int64           `json:"quantity" db:"quantity"`
	AveragePrice decimal.Decimal `json:"average_price" db:"average_price"`
	CurrentPrice decimal.Decimal `json:"current_price" db:"current_price"`
	CostBasis    decimal.Decimal `json:"cost_basis" db:"cost_basis"`

	// Derived fields, recomputed by Derive(); never stored.
	MarketValue   decimal.Decimal `json:"market_value" db:"-"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl" db:"-"`
	ProfitLossPct decimal.Decimal `json:"profit_loss_pct" db:"-"`
}

// Derive recomputes the mark-to-market fields from quantity, current
// price, and cost basis. This is the single definition of
// ProfitLossPct; callers must not recompute it themselves.
func (p *Position) Derive() {
	p.MarketValue = RoundMoney(p.CurrentPrice.Mul(decimal.NewFromInt(p.Quantity)))
	p.UnrealizedPnL = p.MarketValue.Sub(p.CostBasis)
	if p.CostBasis.IsPositive() {
		p.ProfitLossPct = p.UnrealizedPnL.Div(p.CostBasis).Mul(decimal.NewFromInt(100)).Round(2)
	} else {
		p.ProfitLossPct = decimal.Zero
	}
}

// Order is an immutable record of one executed trade. Once journaled it
// is never modified or deleted; it is the audit trail.
type Order struct {
	ID          string           `json:"id" db:"id"`
	UserID      string           `json:"user_id" db:"user_id"`
	Symbol      string           `json:"symbol" db:"symbol"`
	Side        TradeSide        `json:"side" db:"side"`
	Quantity    int64            `json:"quantity" db:"quantity"`
	Price       decimal.Decimal  `json:"price" db:"price"`
	TotalAmount decimal.Decimal  `json:"total_amount" db:"total_amount"`
	Status      OrderStatus      `json:"status" db:"status"`
	RealizedPnL *decimal.Decimal `json:"realized_pnl,omitempty" db:"realized_pnl"` // SELL only
	ExecutedAt  time.Time        `json:"executed_at" db:"executed_at"`
}

// PriceUpdate carries one mark-price change for a symbol.
type PriceUpdate struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// PortfolioSummary aggregates one user's account and open positions.
type PortfolioSummary struct {
	UserID              string          `json:"user_id"`
	Cash                decimal.Decimal `json:"cash"`
	TotalInvestment     decimal.Decimal `json:"total_investment"`
	TotalCurrentValue   decimal.Decimal `json:"total_current_value"`
	TotalPortfolioValue decimal.Decimal `json:"total_portfolio_value"` // cash + current value
	TotalUnrealizedPnL  decimal.Decimal `json:"total_unrealized_pnl"`
	TotalRealizedPnL    decimal.Decimal `json:"total_realized_pnl"`
	PositionCount       int             `json:"position_count"`
	Positions           []Position      `json:"positions"`
}
